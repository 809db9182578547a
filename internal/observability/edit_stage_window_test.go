package observability

import "testing"

func TestEditStageWindowSnapshot(t *testing.T) {
	w := newEditStageWindow(8)
	w.Observe("generate", 500)
	w.Observe("generate", 700)
	w.Observe("generate", 900)
	w.ObserveIndicator("codec_fallback")
	w.ObserveIndicator("codec_fallback")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "generate" {
		t.Fatalf("Stage = %q, want %q", s.Stage, "generate")
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 15000 {
		t.Fatalf("TargetP95MS = %.2f, want 15000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "codec_fallback" {
		t.Fatalf("Indicators[0].Name = %q", snap.Indicators[0].Name)
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want 2", snap.Indicators[0].Count)
	}
}

func TestEditStageWindowRingOverwrite(t *testing.T) {
	w := newEditStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe("fuse", float64(i))
	}
	snap := w.Snapshot()
	if len(snap.Stages) != 1 || snap.Stages[0].Samples != 4 {
		t.Fatalf("snapshot = %+v, want 4 samples for fuse", snap.Stages)
	}
	if snap.Stages[0].LastMS != 9 {
		t.Fatalf("LastMS = %.2f, want 9", snap.Stages[0].LastMS)
	}
}
