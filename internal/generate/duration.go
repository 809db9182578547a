package generate

import (
	"strings"

	"github.com/voxedit/voxedit/internal/asr"
)

const (
	defaultMSPerChar = 80.0
	minDurationMS    = 1000
	maxDurationMS    = 15000
	pausePaddingMS   = 500

	// Measured speaking rates outside this band are implausible and
	// fall back to the default.
	minPlausibleMSPerChar = 40.0
	maxPlausibleMSPerChar = 200.0

	// Word durations outside this band are treated as timing noise and
	// excluded from rate estimation.
	minWordDurationMS = 20.0
	maxWordDurationMS = 1000.0
)

// EstimateDurationMS bounds how much audio the speech model may produce
// for the given text. The speaking rate is measured from the session's
// word timestamps when enough clean words exist, otherwise a default
// rate applies. Punctuated text gains headroom for natural pauses.
func EstimateDurationMS(text string, words []asr.Word) int {
	msPerChar := measureRate(words)

	chars := len(text)
	ms := float64(chars) * msPerChar
	if ms < minDurationMS {
		ms = minDurationMS
	}
	if ms > maxDurationMS {
		ms = maxDurationMS
	}
	if strings.Contains(text, ",") || strings.Contains(text, ".") {
		ms += pausePaddingMS
	}
	return int(ms)
}

func measureRate(words []asr.Word) float64 {
	if len(words) <= 3 {
		return defaultMSPerChar
	}

	totalChars := 0
	totalMS := 0.0
	for _, w := range words {
		durMS := (w.End - w.Start) * 1000
		if len(w.Text) == 0 || durMS <= minWordDurationMS || durMS >= maxWordDurationMS {
			continue
		}
		totalChars += len(w.Text)
		totalMS += durMS
	}
	if totalChars <= 10 || totalMS <= 0 {
		return defaultMSPerChar
	}

	rate := totalMS / float64(totalChars)
	if rate < minPlausibleMSPerChar || rate > maxPlausibleMSPerChar {
		return defaultMSPerChar
	}
	return rate
}
