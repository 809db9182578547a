package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/audio"
	"github.com/voxedit/voxedit/internal/store"
	"github.com/voxedit/voxedit/internal/tokens"
)

// sessionState is the wire form of a session's current snapshot.
type sessionState struct {
	SessionID       string     `json:"session_id"`
	Text            string     `json:"text"`
	Words           []asr.Word `json:"words"`
	NumFrames       int        `json:"num_frames"`
	DurationSeconds float64    `json:"duration_seconds"`
	SampleRate      int        `json:"sample_rate"`
	VersionIndex    int        `json:"version_index"`
	VersionCount    int        `json:"version_count"`
	CanUndo         bool       `json:"can_undo"`
	CanRedo         bool       `json:"can_redo"`
}

func (s *Server) stateResponse(st *store.Store, snap *store.Snapshot) sessionState {
	return sessionState{
		SessionID:       st.SessionID(),
		Text:            snap.Text,
		Words:           snap.Words,
		NumFrames:       snap.NumFrames(),
		DurationSeconds: float64(len(snap.Audio)) / float64(snap.SampleRate),
		SampleRate:      snap.SampleRate,
		VersionIndex:    st.CurrentIndex(),
		VersionCount:    len(st.Versions()),
		CanUndo:         st.CanUndo(),
		CanRedo:         st.CanRedo(),
	}
}

// handleCreateSession ingests a WAV upload, tokenizes it, and opens a
// new editing session. Accepts multipart form data with an "audio"
// field, or a raw WAV body.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	wav, speakerID, err := readAudioUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	snap, err := s.tokenizer.FromWAV(r.Context(), wav, speakerID)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "tokenize_failed", err.Error())
		return
	}

	st := s.registry.Create(s.applier)
	st.Initialize(snap)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
	}
	s.events.Publish(st.SessionID(), Event{Type: "session_created"})

	respondJSON(w, http.StatusCreated, s.stateResponse(st, snap))
}

func readAudioUpload(r *http.Request) ([]byte, int, error) {
	speakerID := 0
	if v := strings.TrimSpace(r.URL.Query().Get("speaker_id")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid speaker_id %q", v)
		}
		speakerID = id
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("audio")
		if err != nil {
			return nil, 0, fmt.Errorf("missing multipart field %q: %w", "audio", err)
		}
		defer file.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, file); err != nil {
			return nil, 0, err
		}
		if v := strings.TrimSpace(r.FormValue("speaker_id")); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid speaker_id %q", v)
			}
			speakerID = id
		}
		return buf.Bytes(), speakerID, nil
	}

	wav, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, 0, err
	}
	if len(wav) == 0 {
		return nil, 0, fmt.Errorf("empty request body")
	}
	return wav, speakerID, nil
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	ids := s.registry.List()
	sort.Strings(ids)
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": ids,
		"count":    len(ids),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := st.Current()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.stateResponse(st, snap))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	s.registry.Remove(st.SessionID())
	s.events.CloseSession(st.SessionID())
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": st.SessionID()})
}

// handleGetAudio streams the current audio as a WAV download. A
// version query parameter exports a historical version without moving
// the session's pointer.
func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}

	var snap *store.Snapshot
	var err error
	if v := strings.TrimSpace(r.URL.Query().Get("version")); v != "" {
		idx, convErr := strconv.Atoi(v)
		if convErr != nil {
			respondError(w, http.StatusBadRequest, "invalid_version", fmt.Sprintf("invalid version %q", v))
			return
		}
		snap, err = st.SnapshotAt(idx)
	} else {
		snap, err = st.Current()
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}

	samples := snap.Audio
	rate := snap.SampleRate
	if rate <= 0 {
		rate = tokens.SampleRate
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="edited.wav"`)
	if err := audio.WriteWAVTo(w, samples, rate); err != nil {
		// Headers are gone; nothing recoverable to send.
		return
	}
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": st.SessionID(),
		"versions":   st.Versions(),
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		respondJSON(w, http.StatusOK, map[string]any{"records": []any{}})
		return
	}
	records, err := s.history.BySession(r.Context(), st.SessionID(), s.cfg.HistoryLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": st.SessionID(),
		"records":    records,
	})
}
