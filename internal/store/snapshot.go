// Package store keeps per-session token state with full version
// history, undo/redo, and an injectable registry of sessions.
package store

import (
	"fmt"
	"sort"

	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/edit"
	"github.com/voxedit/voxedit/internal/tokenmap"
	"github.com/voxedit/voxedit/internal/tokens"
)

// Snapshot is the complete editable state of a session at one version:
// audio, codec tokens, transcript, and the maps tying them together.
// Tokens is nil in semantic-only mode.
type Snapshot struct {
	Audio      []float32
	SampleRate int
	Tokens     tokens.Matrix
	Text       string
	Words      []asr.Word
	SpeakerID  int

	Map           tokenmap.Map
	SemanticToRVQ map[int]int
}

// Clone deep-copies the snapshot so versions never share mutable state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{
		SampleRate: s.SampleRate,
		Text:       s.Text,
		SpeakerID:  s.SpeakerID,
	}
	if s.Audio != nil {
		c.Audio = make([]float32, len(s.Audio))
		copy(c.Audio, s.Audio)
	}
	if s.Tokens != nil {
		c.Tokens = s.Tokens.Clone()
	}
	if s.Words != nil {
		c.Words = make([]asr.Word, len(s.Words))
		copy(c.Words, s.Words)
	}
	c.Map = tokenmap.Map{NumFrames: s.Map.NumFrames}
	if s.Map.TextToToken != nil {
		c.Map.TextToToken = make(map[int]int, len(s.Map.TextToToken))
		for k, v := range s.Map.TextToToken {
			c.Map.TextToToken[k] = v
		}
	}
	if s.Map.TokenToText != nil {
		c.Map.TokenToText = make(map[int]int, len(s.Map.TokenToText))
		for k, v := range s.Map.TokenToText {
			c.Map.TokenToText[k] = v
		}
	}
	if s.SemanticToRVQ != nil {
		c.SemanticToRVQ = make(map[int]int, len(s.SemanticToRVQ))
		for k, v := range s.SemanticToRVQ {
			c.SemanticToRVQ[k] = v
		}
	}
	return c
}

// NumFrames is the token frame count, or zero in semantic-only mode.
func (s *Snapshot) NumFrames() int {
	if s.Tokens == nil {
		return 0
	}
	return s.Tokens.Frames()
}

// TextForTokenRange recovers the transcript text covered by the token
// range [start, end). When the mapping cannot resolve the span, a
// placeholder naming the range is returned.
func (s *Snapshot) TextForTokenRange(start, end int) string {
	if s.Map.TokenToText != nil {
		minStart, maxEnd := -1, -1
		for tok := start; tok < end; tok++ {
			charIdx, ok := s.Map.TokenToText[tok]
			if !ok {
				continue
			}
			if minStart < 0 || charIdx < minStart {
				minStart = charIdx
			}
			for next := tok + 1; next < end+2; next++ {
				if nextChar, ok := s.Map.TokenToText[next]; ok {
					if nextChar > maxEnd {
						maxEnd = nextChar
					}
					break
				}
			}
		}
		if minStart >= 0 {
			if maxEnd < 0 {
				maxEnd = len(s.Text)
			}
			if maxEnd > len(s.Text) {
				maxEnd = len(s.Text)
			}
			if minStart < maxEnd {
				return s.Text[minStart:maxEnd]
			}
		}
	}
	return fmt.Sprintf("[Tokens %d-%d]", start, end)
}

// SpliceText applies the edit's replacement text to the transcript,
// locating the character span through the token-to-text map. Unmapped
// boundaries fall back to the nearest mapped token after the edit, then
// to the end of the text.
func (s *Snapshot) SpliceText(op edit.Operation) string {
	startChar, ok := s.Map.TokenToText[op.StartToken]
	if !ok {
		return s.Text
	}

	endChar := -1
	if c, ok := s.Map.TokenToText[op.EndToken]; ok {
		endChar = c
	} else {
		toks := make([]int, 0, len(s.Map.TokenToText))
		for tok := range s.Map.TokenToText {
			toks = append(toks, tok)
		}
		sort.Ints(toks)
		for _, tok := range toks {
			if tok > op.EndToken {
				endChar = s.Map.TokenToText[tok]
				break
			}
		}
	}
	if endChar < 0 {
		endChar = len(s.Text)
	}
	return s.Text[:startChar] + op.EditedText + s.Text[endChar:]
}
