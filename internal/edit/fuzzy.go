package edit

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// fuzzyThreshold is the similarity ratio below which a fuzzy match is
// reported as low confidence.
const fuzzyThreshold = 0.7

// fuzzyFind slides a window of len(substring) across text and scores
// each position with an edit-distance similarity ratio, returning the
// first best window and its ratio. The ratio is 1 minus the Levenshtein
// distance normalized by the window length.
func fuzzyFind(text, substring string) (start, end int, ratio float64) {
	if substring == "" || len(substring) > len(text) {
		return 0, len(substring), 0
	}

	dmp := diffmatchpatch.New()
	bestRatio := 0.0
	bestStart := 0

	for i := 0; i+len(substring) <= len(text); i++ {
		window := text[i : i+len(substring)]
		diffs := dmp.DiffMain(window, substring, false)
		dist := dmp.DiffLevenshtein(diffs)
		r := 1 - float64(dist)/float64(len(substring))
		if r > bestRatio {
			bestRatio = r
			bestStart = i
		}
	}
	return bestStart, bestStart + len(substring), bestRatio
}
