// Package tokenmap links transcript character offsets to token frame
// indices using word timestamps.
package tokenmap

import (
	"math"
	"strings"

	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/tokens"
)

// endBufferFrames extends a resolved token range past the mapped end so
// trailing consonants are not truncated.
const endBufferFrames = 3

// Map is a bidirectional mapping between byte offsets in the transcript
// and token frame indices. Offsets are byte positions in the UTF-8 text.
type Map struct {
	TextToToken map[int]int
	TokenToText map[int]int
	// NumFrames bounds token indices. Zero means unbounded, as in
	// semantic-only mode where no acoustic frames exist.
	NumFrames int
}

// Build maps every character of every timestamped word to a frame index.
// Word frame spans come from round(time * frameRate) clamped to valid
// frames; characters are linearly interpolated across the span. Words
// not found in the text from the current scan position are skipped.
func Build(text string, words []asr.Word, numFrames int) Map {
	m := Map{
		TextToToken: make(map[int]int),
		TokenToText: make(map[int]int),
		NumFrames:   numFrames,
	}

	textPos := 0
	for _, w := range words {
		if w.Text == "" {
			continue
		}
		rel := strings.Index(text[textPos:], w.Text)
		if rel < 0 {
			continue
		}
		wordPos := textPos + rel
		wordLen := len(w.Text)

		startFrame := clampFrame(int(math.Round(w.Start*tokens.FrameRate)), numFrames)
		endFrame := clampFrame(int(math.Round(w.End*tokens.FrameRate)), numFrames)

		for i := 0; i < wordLen; i++ {
			charPos := wordPos + i
			frame := startFrame
			if endFrame > startFrame {
				progress := float64(i) / float64(wordLen)
				frame = int(math.Round(float64(startFrame) + progress*float64(endFrame-startFrame)))
			}
			m.TextToToken[charPos] = frame
			m.TokenToText[frame] = charPos
		}
		textPos = wordPos + wordLen
	}
	return m
}

// BuildSemantic maps every character of a word to that word's index
// instead of an acoustic frame. Used when no codec tokens exist.
func BuildSemantic(text string, words []asr.Word) Map {
	m := Map{
		TextToToken: make(map[int]int),
		TokenToText: make(map[int]int),
	}

	textPos := 0
	tokenIdx := 0
	for _, w := range words {
		if w.Text == "" {
			continue
		}
		rel := strings.Index(text[textPos:], w.Text)
		if rel < 0 {
			continue
		}
		wordPos := textPos + rel
		for i := 0; i < len(w.Text); i++ {
			m.TextToToken[wordPos+i] = tokenIdx
			m.TokenToText[tokenIdx] = wordPos + i
		}
		tokenIdx++
		textPos = wordPos + len(w.Text)
	}
	return m
}

// SemanticToRVQ maps word indices to the frame where each word starts.
// numFrames of zero leaves indices unclamped.
func SemanticToRVQ(words []asr.Word, numFrames int) map[int]int {
	out := make(map[int]int)
	for i, w := range words {
		idx := int(math.Round(w.Start * tokens.FrameRate))
		if numFrames > 0 {
			idx = clampFrame(idx, numFrames)
		} else if idx < 0 {
			idx = 0
		}
		out[i] = idx
	}
	return out
}

// TokenRange resolves a [startChar, endChar) byte range to token frame
// indices. Unmapped start offsets snap to the nearest mapped offset at
// or before them (earliest overall as a fallback); unmapped end offsets
// snap to the nearest at or after (latest as a fallback). The end gains
// a small buffer, both indices are clamped, and they are swapped if the
// buffer inverted their order.
func (m Map) TokenRange(startChar, endChar int) (int, int) {
	if len(m.TextToToken) == 0 {
		return 0, 0
	}

	start, ok := m.TextToToken[startChar]
	if !ok {
		start = m.lookupAtOrBefore(startChar)
	}
	end, ok := m.TextToToken[endChar]
	if !ok {
		end = m.lookupAtOrAfter(endChar)
	}

	end += endBufferFrames
	if m.NumFrames > 0 {
		start = clampFrame(start, m.NumFrames)
		end = clampFrame(end, m.NumFrames)
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

func (m Map) lookupAtOrBefore(charPos int) int {
	best := -1
	earliest := -1
	for pos := range m.TextToToken {
		if earliest < 0 || pos < earliest {
			earliest = pos
		}
		if pos <= charPos && pos > best {
			best = pos
		}
	}
	if best < 0 {
		best = earliest
	}
	return m.TextToToken[best]
}

func (m Map) lookupAtOrAfter(charPos int) int {
	best := -1
	latest := -1
	for pos := range m.TextToToken {
		if pos > latest {
			latest = pos
		}
		if pos >= charPos && (best < 0 || pos < best) {
			best = pos
		}
	}
	if best < 0 {
		best = latest
	}
	return m.TextToToken[best]
}

func clampFrame(idx, numFrames int) int {
	if idx < 0 {
		return 0
	}
	if numFrames > 0 && idx > numFrames-1 {
		return numFrames - 1
	}
	return idx
}
