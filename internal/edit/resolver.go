package edit

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxedit/voxedit/internal/tokenmap"
)

// sentenceBoundaries delimit padding context. Order matters only for
// ties, which keep the first match.
var sentenceBoundaries = []string{". ", "? ", "! ", "\n"}

// paddingWordWindow bounds the fallback context when no sentence
// boundary is near the edit.
const paddingWordWindow = 5

// paddingCharFallback bounds the context when not even word boundaries
// can be recovered.
const paddingCharFallback = 40

// Resolver turns instructions and explicit spans into Operations.
type Resolver struct {
	model InstructionModel

	// Warnf receives non-fatal resolution diagnostics, such as low
	// confidence fuzzy matches. Nil disables reporting.
	Warnf func(format string, args ...any)
}

func NewResolver(model InstructionModel) *Resolver {
	return &Resolver{model: model}
}

func (r *Resolver) warnf(format string, args ...any) {
	if r.Warnf != nil {
		r.Warnf(format, args...)
	}
}

// FindEditRegion asks the instruction model for the minimal substitution
// and resolves it to a token span. If the proposed original text is not
// found verbatim in the transcript, a fuzzy sliding-window search picks
// the closest span; matches below the confidence threshold are reported
// through Warnf but still used.
func (r *Resolver) FindEditRegion(ctx context.Context, text string, m tokenmap.Map, instruction string) (Operation, error) {
	if r.model == nil {
		return Operation{}, fmt.Errorf("resolve edit: no instruction model configured")
	}
	proposal, err := r.model.ProposeEdit(ctx, text, instruction)
	if err != nil {
		return Operation{}, fmt.Errorf("resolve edit: %w", err)
	}

	confidence := 1.0
	startChar := strings.Index(text, proposal.OriginalText)
	var endChar int
	if startChar >= 0 {
		endChar = startChar + len(proposal.OriginalText)
	} else {
		var ratio float64
		startChar, endChar, ratio = fuzzyFind(text, proposal.OriginalText)
		if ratio < fuzzyThreshold {
			r.warnf("low confidence fuzzy match: %.2f for %q", ratio, proposal.OriginalText)
		}
		confidence = ratio
	}

	return r.buildOperation(text, m, startChar, endChar, proposal.OriginalText, proposal.EditedText, confidence), nil
}

// BuildOperation resolves a pre-specified character span, as used by the
// multi-edit API path where the caller supplies exact offsets.
func (r *Resolver) BuildOperation(text string, m tokenmap.Map, startChar, endChar int, editedText string) Operation {
	if startChar < 0 {
		startChar = 0
	}
	if endChar > len(text) {
		endChar = len(text)
	}
	if endChar < startChar {
		startChar, endChar = endChar, startChar
	}
	return r.buildOperation(text, m, startChar, endChar, text[startChar:endChar], editedText, 1.0)
}

func (r *Resolver) buildOperation(text string, m tokenmap.Map, startChar, endChar int, originalText, editedText string, confidence float64) Operation {
	startToken, endToken := m.TokenRange(startChar, endChar)

	prepadding := noPadding()
	if preText, preStart := PrepaddingContext(text, startChar); preText != "" {
		s, _ := m.TokenRange(preStart, startChar)
		// The padding's inner edge is pinned to the edit boundary.
		prepadding = Padding{Text: preText, StartToken: s, EndToken: startToken}
	}

	postpadding := noPadding()
	if postText, postEnd := PostpaddingContext(text, endChar); postText != "" {
		_, e := m.TokenRange(endChar, postEnd)
		postpadding = Padding{Text: postText, StartToken: endToken, EndToken: e}
	}

	// An insertion replaces nothing, so the span collapses to a point.
	if strings.TrimSpace(originalText) == "" {
		endToken = startToken
	}

	return Operation{
		OriginalText: originalText,
		EditedText:   editedText,
		StartToken:   startToken,
		EndToken:     endToken,
		Confidence:   confidence,
		Prepadding:   prepadding,
		Postpadding:  postpadding,
	}
}

// PrepaddingContext returns the context text immediately before the edit
// and the byte offset where it starts. It prefers everything after the
// last sentence boundary, falling back to the last few words and finally
// to a fixed character window.
func PrepaddingContext(text string, editStart int) (string, int) {
	if editStart > len(text) {
		editStart = len(text)
	}
	if editStart < 0 {
		editStart = 0
	}
	textBefore := strings.TrimSpace(text[:editStart])
	if textBefore == "" {
		return "", 0
	}

	lastIdx, lastLen := -1, 0
	for _, b := range sentenceBoundaries {
		if idx := strings.LastIndex(textBefore, b); idx > lastIdx {
			lastIdx, lastLen = idx, len(b)
		}
	}
	if lastIdx >= 0 {
		startIdx := lastIdx + lastLen
		return textBefore[startIdx:], editStart - len(textBefore) + startIdx
	}

	words := strings.Fields(textBefore)
	if len(words) <= paddingWordWindow {
		return textBefore, editStart - len(textBefore)
	}

	first := words[len(words)-paddingWordWindow]
	ctxStart := strings.LastIndex(textBefore, " "+first+" ")
	if ctxStart < 0 {
		ctxStart = strings.LastIndex(textBefore, first)
		if ctxStart < 0 {
			cut := len(textBefore) - paddingCharFallback
			if cut < 0 {
				cut = 0
			}
			start := editStart - paddingCharFallback
			if start < 0 {
				start = 0
			}
			return textBefore[cut:], start
		}
	}
	if textBefore[ctxStart] == ' ' {
		ctxStart++
	}
	return textBefore[ctxStart:], editStart - len(textBefore) + ctxStart
}

// PostpaddingContext returns the context text immediately after the edit
// and the byte offset where it ends, symmetric to PrepaddingContext.
func PostpaddingContext(text string, editEnd int) (string, int) {
	if editEnd > len(text) {
		editEnd = len(text)
	}
	if editEnd < 0 {
		editEnd = 0
	}
	textAfter := strings.TrimSpace(text[editEnd:])
	if textAfter == "" {
		return "", len(text)
	}

	firstIdx, bLen := len(textAfter), 0
	for _, b := range sentenceBoundaries {
		if idx := strings.Index(textAfter, b); idx >= 0 && idx < firstIdx {
			firstIdx, bLen = idx, len(b)
		}
	}
	if firstIdx < len(textAfter) {
		return textAfter[:firstIdx+bLen], editEnd + firstIdx + bLen
	}

	words := strings.Fields(textAfter)
	if len(words) <= paddingWordWindow {
		return textAfter, editEnd + len(textAfter)
	}

	ctxEnd := 0
	for _, w := range words[:paddingWordWindow] {
		ctxEnd = strings.Index(textAfter[ctxEnd:], w) + ctxEnd + len(w)
	}
	return strings.Join(words[:paddingWordWindow], " "), editEnd + ctxEnd
}
