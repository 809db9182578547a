package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxedit/voxedit/internal/audio"
	"github.com/voxedit/voxedit/internal/edit"
)

var (
	ErrNotInitialized  = errors.New("store not initialized")
	ErrAtOldest        = errors.New("already at the oldest version")
	ErrAtNewest        = errors.New("already at the newest version")
	ErrVersionNotFound = errors.New("version not found")
)

// GeneratedRegion records a time span whose audio was synthesized
// rather than recorded.
type GeneratedRegion struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Original string  `json:"original"`
	Edited   string  `json:"edited"`
}

// Version is one entry of a session's history.
type Version struct {
	ID               string
	Label            string
	Timestamp        time.Time
	State            *Snapshot
	EditDescription  string
	ModifiedTokens   []int
	GeneratedRegions []GeneratedRegion
}

// VersionInfo is the lightweight listing form of a Version, without the
// full state payload.
type VersionInfo struct {
	ID               string            `json:"id"`
	Label            string            `json:"label"`
	Timestamp        time.Time         `json:"timestamp"`
	EditDescription  string            `json:"edit_description"`
	ModifiedTokens   []int             `json:"modified_token_indices"`
	GeneratedRegions []GeneratedRegion `json:"generated_regions"`
	Index            int               `json:"index"`
	IsCurrent        bool              `json:"is_current"`
}

// ApplyResult is what an EditApplier produces for one operation.
type ApplyResult struct {
	State   *Snapshot
	Regions []GeneratedRegion
}

// EditApplier runs the resolve/generate/fuse pipeline for a single
// operation against a snapshot, returning the new state without
// touching the store.
type EditApplier interface {
	Apply(ctx context.Context, sessionID string, snap *Snapshot, op edit.Operation) (*ApplyResult, error)
}

// Store holds one session's state and version history behind a single
// coarse lock. Edits are applied strictly serially per session.
type Store struct {
	mu sync.Mutex

	sessionID string
	applier   EditApplier

	versions []*Version
	current  int

	state *Snapshot

	// AudioDumpDir, when non-empty, receives one WAV file per saved
	// version under <dir>/<sessionID>/. Dump failures are reported
	// through OnWarning and never fail the edit.
	AudioDumpDir string
	OnWarning    func(msg string)

	now func() time.Time
}

func NewStore(sessionID string, applier EditApplier) *Store {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Store{
		sessionID: sessionID,
		applier:   applier,
		current:   -1,
		now:       time.Now,
	}
}

func (s *Store) SessionID() string { return s.sessionID }

// Initialize installs the first snapshot as version 0, "Original".
func (s *Store) Initialize(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = snap.Clone()
	s.versions = nil
	s.current = -1
	s.saveVersionLocked("Original", "Original audio", nil, nil)
	return s.state.Clone()
}

// Current returns a copy of the working state.
func (s *Store) Current() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	return s.state.Clone(), nil
}

// ApplyEdit replaces the token range [start, end) with newly generated
// audio for newText and appends a version. The session state is only
// replaced after the whole pipeline succeeds.
func (s *Store) ApplyEdit(ctx context.Context, start, end int, newText string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}

	originalText := s.state.TextForTokenRange(start, end)
	op := edit.Operation{
		OriginalText: originalText,
		EditedText:   newText,
		StartToken:   start,
		EndToken:     end,
		Confidence:   1.0,
		Prepadding:   edit.Padding{StartToken: -1, EndToken: -1},
		Postpadding:  edit.Padding{StartToken: -1, EndToken: -1},
	}
	return s.applyLocked(ctx, op, "Edit")
}

// ApplyOperation applies an already-resolved operation, as produced by
// the instruction-driven path.
func (s *Store) ApplyOperation(ctx context.Context, op edit.Operation) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	return s.applyLocked(ctx, op, "Edit")
}

func (s *Store) applyLocked(ctx context.Context, op edit.Operation, label string) (*Snapshot, error) {
	res, err := s.applier.Apply(ctx, s.sessionID, s.state, op)
	if err != nil {
		return nil, err
	}

	s.state = res.State
	modified := make([]int, 0, op.EndToken-op.StartToken)
	for i := op.StartToken; i < op.EndToken; i++ {
		modified = append(modified, i)
	}
	s.saveVersionLocked(label, fmt.Sprintf("%s → %s", op.OriginalText, op.EditedText), modified, res.Regions)
	return s.state.Clone(), nil
}

// ApplyEditOperations applies several operations left to right against
// the evolving state, shifting later token indices by the length delta
// of earlier edits, and records a single combined version. If any
// operation fails, the session state is left as it was before the call.
func (s *Store) ApplyEditOperations(ctx context.Context, ops []edit.Operation) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	if len(ops) == 0 {
		return s.state.Clone(), nil
	}

	sorted := make([]edit.Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].StartToken < sorted[b].StartToken
	})

	working := s.state
	offset := 0
	var modified []int
	var regions []GeneratedRegion
	descriptions := make([]string, 0, len(sorted))

	for _, op := range sorted {
		if offset != 0 {
			op.StartToken += offset
			op.EndToken += offset
			if op.Prepadding.StartToken >= 0 {
				op.Prepadding.StartToken += offset
			}
			if op.Prepadding.EndToken >= 0 {
				op.Prepadding.EndToken = op.StartToken
			}
			if op.Postpadding.StartToken >= 0 {
				op.Postpadding.StartToken = op.EndToken
			}
			if op.Postpadding.EndToken >= 0 {
				op.Postpadding.EndToken += offset
			}
		}

		for i := op.StartToken; i < op.EndToken; i++ {
			modified = append(modified, i)
		}

		oldFrames := working.NumFrames()
		res, err := s.applier.Apply(ctx, s.sessionID, working, op)
		if err != nil {
			return nil, fmt.Errorf("apply operation %q: %w", op.OriginalText, err)
		}

		offset += res.State.NumFrames() - oldFrames
		working = res.State
		regions = append(regions, res.Regions...)
		descriptions = append(descriptions, fmt.Sprintf("%s → %s", op.OriginalText, op.EditedText))
	}

	s.state = working
	s.saveVersionLocked("Multi-edit", strings.Join(descriptions, " | "), modified, regions)
	return s.state.Clone(), nil
}

// Undo moves the version pointer one step back.
func (s *Store) Undo() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	if s.current <= 0 {
		return nil, ErrAtOldest
	}
	s.current--
	s.state = s.versions[s.current].State.Clone()
	return s.state.Clone(), nil
}

// Redo moves the version pointer one step forward.
func (s *Store) Redo() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	if s.current >= len(s.versions)-1 {
		return nil, ErrAtNewest
	}
	s.current++
	s.state = s.versions[s.current].State.Clone()
	return s.state.Clone(), nil
}

// RestoreVersion jumps the pointer directly to index without truncating
// any history.
func (s *Store) RestoreVersion(index int) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	if index < 0 || index >= len(s.versions) {
		return nil, fmt.Errorf("%w: index %d", ErrVersionNotFound, index)
	}
	s.current = index
	s.state = s.versions[index].State.Clone()
	return s.state.Clone(), nil
}

// RestoreVersionByID is RestoreVersion keyed by the version's ID.
func (s *Store) RestoreVersionByID(id string) (*Snapshot, error) {
	s.mu.Lock()
	idx := -1
	for i, v := range s.versions {
		if v.ID == id {
			idx = i
			break
		}
	}
	s.mu.Unlock()
	if idx < 0 {
		return nil, fmt.Errorf("%w: id %s", ErrVersionNotFound, id)
	}
	return s.RestoreVersion(idx)
}

// SnapshotAt returns a copy of the state recorded at version index
// without moving the pointer.
func (s *Store) SnapshotAt(index int) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	if index < 0 || index >= len(s.versions) {
		return nil, fmt.Errorf("%w: index %d", ErrVersionNotFound, index)
	}
	return s.versions[index].State.Clone(), nil
}

// Versions lists history metadata without state payloads.
func (s *Store) Versions() []VersionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VersionInfo, len(s.versions))
	for i, v := range s.versions {
		out[i] = VersionInfo{
			ID:               v.ID,
			Label:            v.Label,
			Timestamp:        v.Timestamp,
			EditDescription:  v.EditDescription,
			ModifiedTokens:   v.ModifiedTokens,
			GeneratedRegions: v.GeneratedRegions,
			Index:            i,
			IsCurrent:        i == s.current,
		}
	}
	return out
}

func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current > 0
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current < len(s.versions)-1
}

// saveVersionLocked appends the current state as a new version. When the
// pointer is behind the list's end, all future versions are discarded
// first: a fresh edit after an undo destroys redo history.
func (s *Store) saveVersionLocked(label, description string, modified []int, regions []GeneratedRegion) string {
	v := &Version{
		ID:               uuid.NewString(),
		Label:            label,
		Timestamp:        s.now().UTC(),
		State:            s.state.Clone(),
		EditDescription:  description,
		ModifiedTokens:   modified,
		GeneratedRegions: regions,
	}

	if s.current < len(s.versions)-1 {
		s.versions = s.versions[:s.current+1]
	}
	s.versions = append(s.versions, v)
	s.current = len(s.versions) - 1

	if s.AudioDumpDir != "" && len(s.state.Audio) > 0 {
		if err := s.dumpAudio(v.ID); err != nil && s.OnWarning != nil {
			s.OnWarning(fmt.Sprintf("audio dump for version %s: %v", v.ID, err))
		}
	}
	return v.ID
}

func (s *Store) dumpAudio(versionID string) error {
	dir := filepath.Join(s.AudioDumpDir, s.sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, versionID+".wav"))
	if err != nil {
		return err
	}
	defer f.Close()
	return audio.WriteWAVTo(f, s.state.Audio, s.state.SampleRate)
}
