package httpapi

import (
	"net/http"
	"strings"

	"github.com/voxedit/voxedit/internal/edit"
	"github.com/voxedit/voxedit/internal/history"
	"github.com/voxedit/voxedit/internal/store"
)

type editRequest struct {
	StartToken int    `json:"start_token"`
	EndToken   int    `json:"end_token"`
	NewText    string `json:"new_text"`
}

type batchEditRequest struct {
	Edits []editRequest `json:"edits"`
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

type restoreRequest struct {
	Index     *int   `json:"index,omitempty"`
	VersionID string `json:"version_id,omitempty"`
}

type editResponse struct {
	State      sessionState `json:"state"`
	Original   string       `json:"original_text,omitempty"`
	Edited     string       `json:"edited_text,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
}

func (s *Server) countEdit(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.Edits.WithLabelValues(kind, outcome).Inc()
	}
}

func (s *Server) recordHistory(r *http.Request, sessionID string, rec history.EditRecord) {
	if s.history == nil {
		return
	}
	rec.SessionID = sessionID
	// Audit failures must not fail the edit that already succeeded.
	_ = s.history.Record(r.Context(), rec)
}

func (s *Server) handleApplyEdit(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.StartToken < 0 || req.EndToken < req.StartToken {
		respondError(w, http.StatusBadRequest, "invalid_token_range", "end_token must be >= start_token >= 0")
		return
	}

	snap, err := st.Current()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	original := snap.TextForTokenRange(req.StartToken, req.EndToken)

	next, err := st.ApplyEdit(r.Context(), req.StartToken, req.EndToken, req.NewText)
	if err != nil {
		s.countEdit("single", "error")
		respondStoreError(w, err)
		return
	}
	s.countEdit("single", "ok")
	s.events.Publish(st.SessionID(), Event{Type: "edit_applied", Detail: req.NewText})
	s.recordHistory(r, st.SessionID(), history.EditRecord{
		VersionID:    currentVersionID(st),
		Kind:         "edit",
		OriginalText: original,
		EditedText:   req.NewText,
		StartToken:   req.StartToken,
		EndToken:     req.EndToken,
		Confidence:   1.0,
	})

	respondJSON(w, http.StatusOK, editResponse{
		State:      s.stateResponse(st, next),
		Original:   original,
		Edited:     req.NewText,
		Confidence: 1.0,
	})
}

func (s *Server) handleApplyBatch(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	var req batchEditRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Edits) == 0 {
		respondError(w, http.StatusBadRequest, "empty_batch", "edits must not be empty")
		return
	}

	snap, err := st.Current()
	if err != nil {
		respondStoreError(w, err)
		return
	}

	ops := make([]edit.Operation, 0, len(req.Edits))
	for _, e := range req.Edits {
		if e.StartToken < 0 || e.EndToken < e.StartToken {
			respondError(w, http.StatusBadRequest, "invalid_token_range", "end_token must be >= start_token >= 0")
			return
		}
		ops = append(ops, edit.Operation{
			OriginalText: snap.TextForTokenRange(e.StartToken, e.EndToken),
			EditedText:   e.NewText,
			StartToken:   e.StartToken,
			EndToken:     e.EndToken,
			Confidence:   1.0,
			Prepadding:   edit.Padding{StartToken: -1, EndToken: -1},
			Postpadding:  edit.Padding{StartToken: -1, EndToken: -1},
		})
	}

	next, err := st.ApplyEditOperations(r.Context(), ops)
	if err != nil {
		s.countEdit("batch", "error")
		respondStoreError(w, err)
		return
	}
	s.countEdit("batch", "ok")
	s.events.Publish(st.SessionID(), Event{Type: "batch_applied"})
	for _, op := range ops {
		s.recordHistory(r, st.SessionID(), history.EditRecord{
			VersionID:    currentVersionID(st),
			Kind:         "batch_edit",
			OriginalText: op.OriginalText,
			EditedText:   op.EditedText,
			StartToken:   op.StartToken,
			EndToken:     op.EndToken,
			Confidence:   op.Confidence,
		})
	}

	respondJSON(w, http.StatusOK, editResponse{State: s.stateResponse(st, next)})
}

func (s *Server) handleInstructionEdit(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.resolver == nil {
		respondError(w, http.StatusNotImplemented, "instruction_model_unavailable", "no instruction model configured")
		return
	}
	var req instructionRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Instruction) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "instruction is required")
		return
	}

	snap, err := st.Current()
	if err != nil {
		respondStoreError(w, err)
		return
	}

	op, err := s.resolver.FindEditRegion(r.Context(), snap.Text, snap.Map, req.Instruction)
	if err != nil {
		s.countEdit("instruction", "error")
		respondError(w, http.StatusBadGateway, "resolve_failed", err.Error())
		return
	}

	next, err := st.ApplyOperation(r.Context(), op)
	if err != nil {
		s.countEdit("instruction", "error")
		respondStoreError(w, err)
		return
	}
	s.countEdit("instruction", "ok")
	s.events.Publish(st.SessionID(), Event{Type: "edit_applied", Detail: op.EditedText})
	s.recordHistory(r, st.SessionID(), history.EditRecord{
		VersionID:    currentVersionID(st),
		Kind:         "instruction",
		Instruction:  req.Instruction,
		OriginalText: op.OriginalText,
		EditedText:   op.EditedText,
		StartToken:   op.StartToken,
		EndToken:     op.EndToken,
		Confidence:   op.Confidence,
	})

	respondJSON(w, http.StatusOK, editResponse{
		State:      s.stateResponse(st, next),
		Original:   op.OriginalText,
		Edited:     op.EditedText,
		Confidence: op.Confidence,
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := st.Undo()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	s.events.Publish(st.SessionID(), Event{Type: "undo"})
	s.recordHistory(r, st.SessionID(), history.EditRecord{VersionID: currentVersionID(st), Kind: "undo"})
	respondJSON(w, http.StatusOK, s.stateResponse(st, snap))
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := st.Redo()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	s.events.Publish(st.SessionID(), Event{Type: "redo"})
	s.recordHistory(r, st.SessionID(), history.EditRecord{VersionID: currentVersionID(st), Kind: "redo"})
	respondJSON(w, http.StatusOK, s.stateResponse(st, snap))
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var (
		snap *store.Snapshot
		err  error
	)
	switch {
	case req.VersionID != "":
		snap, err = st.RestoreVersionByID(req.VersionID)
	case req.Index != nil:
		snap, err = st.RestoreVersion(*req.Index)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "index or version_id is required")
		return
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	s.events.Publish(st.SessionID(), Event{Type: "restore"})
	s.recordHistory(r, st.SessionID(), history.EditRecord{VersionID: currentVersionID(st), Kind: "restore"})
	respondJSON(w, http.StatusOK, s.stateResponse(st, snap))
}

// currentVersionID resolves the id of the version the pointer sits on.
func currentVersionID(st *store.Store) string {
	versions := st.Versions()
	idx := st.CurrentIndex()
	if idx < 0 || idx >= len(versions) {
		return ""
	}
	return versions[idx].ID
}
