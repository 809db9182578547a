// Package align refines word timestamps by force-aligning a transcript
// against acoustic model emissions with a CTC trellis.
package align

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/voxedit/voxedit/internal/asr"
)

// AcousticModel produces per-frame log probabilities over a character
// vocabulary. Emissions returns a [numFrames][vocabSize] matrix of
// log-softmax scores for the given mono samples.
type AcousticModel interface {
	Emissions(ctx context.Context, samples []float32) ([][]float64, error)
	Vocabulary() map[rune]int
	BlankID() int
	SampleRate() int
}

// languagesWithoutSpaces lists languages where the space-to-pipe
// substitution must be skipped.
var languagesWithoutSpaces = map[string]bool{"ja": true, "zh": true}

const (
	beamWidth = 4
	// minModelSamples pads very short segments so the model still
	// produces at least one emission frame.
	minModelSamples = 400
)

// Aligner aligns transcripts against audio using a CTC acoustic model.
type Aligner struct {
	model    AcousticModel
	language string
}

// New returns an Aligner for the given model and ISO language code.
func New(model AcousticModel, language string) *Aligner {
	return &Aligner{model: model, language: language}
}

type point struct {
	tokenIndex int
	timeIndex  int
	score      float64
}

type charSegment struct {
	label rune
	start int
	end   int
	score float64
}

type beamState struct {
	tokenIndex int
	timeIndex  int
	score      float64
	path       []point
}

// Align aligns transcript against samples between start and end seconds.
// If end is zero or negative the full duration is used. When no path can
// be found the whole transcript is returned as a single word with score
// zero, spanning the requested window.
func (a *Aligner) Align(ctx context.Context, samples []float32, transcript string, start, end float64) ([]asr.Word, error) {
	rate := a.model.SampleRate()
	total := float64(len(samples)) / float64(rate)
	if end <= 0 || end > total {
		end = total
	}
	if start < 0 {
		start = 0
	}
	if start >= end {
		return nil, fmt.Errorf("align: invalid window [%f, %f]", start, end)
	}

	cleanChars, toks, charToIdx := a.prepareText(transcript)
	if len(toks) == 0 {
		return []asr.Word{{Text: transcript, Start: start, End: end, Confidence: 0}}, nil
	}

	f1 := int(start * float64(rate))
	f2 := int(end * float64(rate))
	if f2 > len(samples) {
		f2 = len(samples)
	}
	segment := samples[f1:f2]
	if len(segment) < minModelSamples {
		padded := make([]float32, minModelSamples)
		copy(padded, segment)
		segment = padded
	}

	emission, err := a.model.Emissions(ctx, segment)
	if err != nil {
		return nil, fmt.Errorf("align: emissions: %w", err)
	}
	blank := a.model.BlankID()

	if len(emission) <= len(toks) {
		return []asr.Word{{Text: transcript, Start: start, End: end, Confidence: 0}}, nil
	}

	trellis := buildTrellis(emission, toks, blank)
	path := backtrackBeam(trellis, emission, toks, blank, beamWidth)
	if path == nil {
		return []asr.Word{{Text: transcript, Start: start, End: end, Confidence: 0}}, nil
	}

	segments := mergeRepeats(path, cleanChars)

	duration := end - start
	ratio := duration / float64(len(trellis)-1)

	runes := []rune(transcript)
	type alignedChar struct {
		char  rune
		start float64
		end   float64
		score float64
	}
	var aligned []alignedChar
	for i, seg := range segments {
		origIdx, ok := charToIdx[i]
		if !ok {
			continue
		}
		aligned = append(aligned, alignedChar{
			char:  runes[origIdx],
			start: start + float64(seg.start)*ratio,
			end:   start + float64(seg.end)*ratio,
			score: seg.score,
		})
	}

	var words []asr.Word
	var current []alignedChar
	flush := func() {
		if len(current) == 0 {
			return
		}
		var b strings.Builder
		wordStart := current[0].start
		wordEnd := current[0].end
		sum := 0.0
		for _, c := range current {
			b.WriteRune(c.char)
			if c.start < wordStart {
				wordStart = c.start
			}
			if c.end > wordEnd {
				wordEnd = c.end
			}
			sum += c.score
		}
		words = append(words, asr.Word{
			Text:       b.String(),
			Start:      wordStart,
			End:        wordEnd,
			Confidence: sum / float64(len(current)),
		})
		current = current[:0]
	}
	for _, c := range aligned {
		if unicode.IsSpace(c.char) {
			flush()
			continue
		}
		current = append(current, c)
	}
	flush()

	return words, nil
}

// prepareText lowercases and filters the transcript to vocabulary
// characters, mapping cleaned indices back to rune positions in the
// original text. Spaces become the model's word separator character
// except for languages written without spaces. Out-of-vocabulary
// characters are dropped.
func (a *Aligner) prepareText(text string) ([]rune, []int, map[int]int) {
	vocab := a.model.Vocabulary()
	var clean []rune
	var toks []int
	charToIdx := make(map[int]int)

	for i, r := range []rune(text) {
		lower := unicode.ToLower(r)
		if !languagesWithoutSpaces[a.language] && lower == ' ' {
			lower = '|'
		}
		if _, ok := vocab[lower]; !ok {
			continue
		}
		clean = append(clean, lower)
		charToIdx[len(clean)-1] = i
		toks = append(toks, vocab[lower])
	}
	return clean, toks, charToIdx
}

// buildTrellis fills the CTC score matrix. Row t, column j holds the best
// log score of emitting the first j tokens within the first t frames.
func buildTrellis(emission [][]float64, toks []int, blank int) [][]float64 {
	numFrames := len(emission)
	numTokens := len(toks)

	trellis := make([][]float64, numFrames)
	for t := range trellis {
		trellis[t] = make([]float64, numTokens)
	}

	cum := 0.0
	for t := 1; t < numFrames; t++ {
		cum += emission[t][blank]
		trellis[t][0] = cum
	}
	for j := 1; j < numTokens; j++ {
		trellis[0][j] = math.Inf(-1)
	}
	for t := numFrames - numTokens + 1; t < numFrames; t++ {
		if t >= 0 {
			trellis[t][0] = math.Inf(1)
		}
	}

	for t := 0; t < numFrames-1; t++ {
		for j := 1; j < numTokens; j++ {
			stay := trellis[t][j] + emission[t][blank]
			advance := trellis[t][j-1] + wildcardEmission(emission[t], toks[j], blank)
			trellis[t+1][j] = math.Max(stay, advance)
		}
	}
	return trellis
}

// wildcardEmission scores a token against one frame. Wildcard tokens (-1)
// take the best non-blank score in the frame.
func wildcardEmission(frame []float64, tok, blank int) float64 {
	if tok >= 0 {
		return frame[tok]
	}
	best := math.Inf(-1)
	for i, s := range frame {
		if i == blank {
			continue
		}
		if s > best {
			best = s
		}
	}
	return best
}

// backtrackBeam walks the trellis from the final cell back to frame zero,
// keeping the top beamWidth partial paths. Returns nil when no viable
// path exists.
func backtrackBeam(trellis [][]float64, emission [][]float64, toks []int, blank, width int) []point {
	T := len(trellis) - 1
	J := len(trellis[0]) - 1

	init := beamState{
		tokenIndex: J,
		timeIndex:  T,
		score:      trellis[T][J],
		path:       []point{{J, T, math.Exp(emission[T][blank])}},
	}
	beams := []beamState{init}

	for len(beams) > 0 && beams[0].tokenIndex > 0 {
		var next []beamState
		for _, beam := range beams {
			t, j := beam.timeIndex, beam.tokenIndex
			if t <= 0 {
				continue
			}

			pStay := math.Exp(emission[t-1][blank])
			pChange := math.Exp(wildcardEmission(emission[t-1], toks[j], blank))

			stayScore := trellis[t-1][j]
			changeScore := math.Inf(-1)
			if j > 0 {
				changeScore = trellis[t-1][j-1]
			}

			if !math.IsInf(stayScore, 0) {
				path := append(append([]point(nil), beam.path...), point{j, t - 1, pStay})
				next = append(next, beamState{tokenIndex: j, timeIndex: t - 1, score: stayScore, path: path})
			}
			if j > 0 && !math.IsInf(changeScore, 0) {
				path := append(append([]point(nil), beam.path...), point{j - 1, t - 1, pChange})
				next = append(next, beamState{tokenIndex: j - 1, timeIndex: t - 1, score: changeScore, path: path})
			}
		}

		sort.SliceStable(next, func(a, b int) bool { return next[a].score > next[b].score })
		if len(next) > width {
			next = next[:width]
		}
		beams = next
	}

	if len(beams) == 0 {
		return nil
	}

	best := beams[0]
	t, j := best.timeIndex, best.tokenIndex
	for t > 0 {
		best.path = append(best.path, point{j, t - 1, math.Exp(emission[t-1][blank])})
		t--
	}

	for i, k := 0, len(best.path)-1; i < k; i, k = i+1, k-1 {
		best.path[i], best.path[k] = best.path[k], best.path[i]
	}
	return best.path
}

// mergeRepeats collapses consecutive path points on the same token into
// one segment with the mean score.
func mergeRepeats(path []point, clean []rune) []charSegment {
	var segments []charSegment
	i1 := 0
	for i1 < len(path) {
		i2 := i1
		for i2 < len(path) && path[i1].tokenIndex == path[i2].tokenIndex {
			i2++
		}
		sum := 0.0
		for k := i1; k < i2; k++ {
			sum += path[k].score
		}
		segments = append(segments, charSegment{
			label: clean[path[i1].tokenIndex],
			start: path[i1].timeIndex,
			end:   path[i2-1].timeIndex + 1,
			score: sum / float64(i2-i1),
		})
		i1 = i2
	}
	return segments
}
