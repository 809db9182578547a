package edit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/tokenmap"
)

const fixtureText = "I like chocolate ice cream. It is great."

func fixtureMap() tokenmap.Map {
	words := []asr.Word{
		{Text: "I", Start: 0.0, End: 0.1},
		{Text: "like", Start: 0.2, End: 0.5},
		{Text: "chocolate", Start: 0.5, End: 1.2},
		{Text: "ice", Start: 1.2, End: 1.5},
		{Text: "cream.", Start: 1.5, End: 2.0},
		{Text: "It", Start: 2.1, End: 2.3},
		{Text: "is", Start: 2.3, End: 2.5},
		{Text: "great.", Start: 2.5, End: 3.0},
	}
	return tokenmap.Build(fixtureText, words, 60)
}

func TestFindEditRegionExactMatch(t *testing.T) {
	r := NewResolver(&StaticModel{Proposal: Proposal{
		OriginalText: "chocolate",
		EditedText:   "vanilla",
	}})

	op, err := r.FindEditRegion(context.Background(), fixtureText, fixtureMap(), "make it vanilla")
	if err != nil {
		t.Fatalf("FindEditRegion() error = %v", err)
	}
	if op.OriginalText != "chocolate" || op.EditedText != "vanilla" {
		t.Fatalf("op texts = %q -> %q", op.OriginalText, op.EditedText)
	}
	if op.Confidence != 1.0 {
		t.Fatalf("exact match confidence = %v, want 1.0", op.Confidence)
	}
	// "chocolate" spans 0.5s..1.2s -> frames 6..15, end snaps forward
	// past the space and gains the trailing buffer.
	if op.StartToken != 6 {
		t.Fatalf("StartToken = %d, want 6", op.StartToken)
	}
	if op.EndToken != 18 {
		t.Fatalf("EndToken = %d, want 18", op.EndToken)
	}
	if op.IsInsertion() || op.IsDeletion() {
		t.Fatalf("replacement misclassified: insertion=%v deletion=%v", op.IsInsertion(), op.IsDeletion())
	}
}

func TestFindEditRegionPinsPaddingToEditBoundaries(t *testing.T) {
	r := NewResolver(&StaticModel{Proposal: Proposal{
		OriginalText: "chocolate",
		EditedText:   "vanilla",
	}})

	op, err := r.FindEditRegion(context.Background(), fixtureText, fixtureMap(), "make it vanilla")
	if err != nil {
		t.Fatalf("FindEditRegion() error = %v", err)
	}
	if op.Prepadding.Text != "I like" {
		t.Fatalf("prepadding text = %q, want %q", op.Prepadding.Text, "I like")
	}
	if op.Prepadding.EndToken != op.StartToken {
		t.Fatalf("prepadding end = %d, want pinned to edit start %d", op.Prepadding.EndToken, op.StartToken)
	}
	if op.Postpadding.Text != "ice cream. " {
		t.Fatalf("postpadding text = %q, want %q", op.Postpadding.Text, "ice cream. ")
	}
	if op.Postpadding.StartToken != op.EndToken {
		t.Fatalf("postpadding start = %d, want pinned to edit end %d", op.Postpadding.StartToken, op.EndToken)
	}
}

func TestFindEditRegionFuzzyFallback(t *testing.T) {
	r := NewResolver(&StaticModel{Proposal: Proposal{
		OriginalText: "chocolatte",
		EditedText:   "vanilla",
	}})

	op, err := r.FindEditRegion(context.Background(), fixtureText, fixtureMap(), "make it vanilla")
	if err != nil {
		t.Fatalf("FindEditRegion() error = %v", err)
	}
	if op.Confidence >= 1.0 || op.Confidence < fuzzyThreshold {
		t.Fatalf("fuzzy confidence = %v, want in [%v, 1.0)", op.Confidence, fuzzyThreshold)
	}
	// The matched span still lands on the chocolate region of the audio.
	if op.StartToken < 5 || op.StartToken > 8 {
		t.Fatalf("fuzzy StartToken = %d, want near 6", op.StartToken)
	}
}

func TestFindEditRegionWarnsOnLowConfidence(t *testing.T) {
	r := NewResolver(&StaticModel{Proposal: Proposal{
		OriginalText: "zzzzzqqqqq",
		EditedText:   "vanilla",
	}})
	var warned bool
	r.Warnf = func(format string, args ...any) { warned = true }

	op, err := r.FindEditRegion(context.Background(), fixtureText, fixtureMap(), "nonsense")
	if err != nil {
		t.Fatalf("FindEditRegion() error = %v", err)
	}
	if !warned {
		t.Fatalf("no warning for low confidence match")
	}
	if op.Confidence >= fuzzyThreshold {
		t.Fatalf("confidence = %v, want below %v", op.Confidence, fuzzyThreshold)
	}
}

func TestFindEditRegionInsertionCollapsesSpan(t *testing.T) {
	r := NewResolver(&StaticModel{Proposal: Proposal{
		OriginalText: "",
		EditedText:   "really ",
	}})

	op, err := r.FindEditRegion(context.Background(), fixtureText, fixtureMap(), "add emphasis")
	if err != nil {
		t.Fatalf("FindEditRegion() error = %v", err)
	}
	if !op.IsInsertion() {
		t.Fatalf("empty original not classified as insertion")
	}
	if op.StartToken != op.EndToken {
		t.Fatalf("insertion span = [%d, %d], want collapsed", op.StartToken, op.EndToken)
	}
}

func TestFindEditRegionModelError(t *testing.T) {
	wantErr := errors.New("model offline")
	r := NewResolver(&StaticModel{Err: wantErr})
	if _, err := r.FindEditRegion(context.Background(), fixtureText, fixtureMap(), "x"); !errors.Is(err, wantErr) {
		t.Fatalf("FindEditRegion() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestBuildOperationExplicitSpan(t *testing.T) {
	r := NewResolver(nil)
	start := strings.Index(fixtureText, "chocolate")
	op := r.BuildOperation(fixtureText, fixtureMap(), start, start+len("chocolate"), "")

	if op.OriginalText != "chocolate" {
		t.Fatalf("OriginalText = %q, want chocolate", op.OriginalText)
	}
	if !op.IsDeletion() {
		t.Fatalf("empty replacement not classified as deletion")
	}
	if op.StartToken != 6 || op.EndToken != 18 {
		t.Fatalf("span = [%d, %d], want [6, 18]", op.StartToken, op.EndToken)
	}
}

func TestPrepaddingContextStopsAtSentenceBoundary(t *testing.T) {
	start := strings.Index(fixtureText, "great")
	text, idx := PrepaddingContext(fixtureText, start)
	if text != "It is" {
		t.Fatalf("prepadding = %q, want %q", text, "It is")
	}
	// The offset may drift by the whitespace trimmed around the context,
	// but must land inside the sentence holding it.
	sentence := strings.Index(fixtureText, "It is")
	if idx < sentence || idx >= start {
		t.Fatalf("prepadding offset = %d, want within [%d, %d)", idx, sentence, start)
	}
}

func TestPrepaddingContextEmptyAtStart(t *testing.T) {
	text, idx := PrepaddingContext(fixtureText, 0)
	if text != "" || idx != 0 {
		t.Fatalf("prepadding at start = (%q, %d), want empty", text, idx)
	}
}

func TestPrepaddingContextWordWindow(t *testing.T) {
	long := "one two three four five six seven eight"
	start := strings.Index(long, "eight")
	text, _ := PrepaddingContext(long, start)
	words := strings.Fields(text)
	if len(words) != 5 {
		t.Fatalf("prepadding words = %d (%q), want 5", len(words), text)
	}
	if words[0] != "three" {
		t.Fatalf("prepadding starts at %q, want three", words[0])
	}
}

func TestPostpaddingContextStopsAtSentenceBoundary(t *testing.T) {
	end := strings.Index(fixtureText, "chocolate") + len("chocolate")
	text, idx := PostpaddingContext(fixtureText, end)
	if text != "ice cream. " {
		t.Fatalf("postpadding = %q, want %q", text, "ice cream. ")
	}
	if idx <= end || idx > len(fixtureText) {
		t.Fatalf("postpadding end offset = %d out of range", idx)
	}
}

func TestPostpaddingContextEmptyAtEnd(t *testing.T) {
	text, idx := PostpaddingContext(fixtureText, len(fixtureText))
	if text != "" || idx != len(fixtureText) {
		t.Fatalf("postpadding at end = (%q, %d), want empty", text, idx)
	}
}

func TestPostpaddingContextWordWindow(t *testing.T) {
	long := "zero one two three four five six seven eight"
	text, _ := PostpaddingContext(long, len("zero"))
	words := strings.Fields(text)
	if len(words) != 5 {
		t.Fatalf("postpadding words = %d (%q), want 5", len(words), text)
	}
	if words[0] != "one" || words[4] != "five" {
		t.Fatalf("postpadding window = %q, want one..five", text)
	}
}
