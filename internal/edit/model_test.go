package edit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPInstructionModelBareResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"subseq_original": "fox", "subseq_edited": "cow"}`))
	}))
	defer srv.Close()

	m := NewHTTPInstructionModel(srv.URL)
	p, err := m.ProposeEdit(context.Background(), "the fox jumps", "make it a cow")
	if err != nil {
		t.Fatalf("ProposeEdit() error = %v", err)
	}
	if p.OriginalText != "fox" || p.EditedText != "cow" {
		t.Fatalf("proposal = %+v, want fox -> cow", p)
	}
}

func TestHTTPInstructionModelEnvelopeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": "{\"subseq_original\": \"fox\", \"subseq_edited\": \"cow\"}"}`))
	}))
	defer srv.Close()

	m := NewHTTPInstructionModel(srv.URL)
	p, err := m.ProposeEdit(context.Background(), "the fox jumps", "make it a cow")
	if err != nil {
		t.Fatalf("ProposeEdit() error = %v", err)
	}
	if p.OriginalText != "fox" || p.EditedText != "cow" {
		t.Fatalf("proposal = %+v, want fox -> cow", p)
	}
}

func TestHTTPInstructionModelErrorStatusNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewHTTPInstructionModel(srv.URL)
	if _, err := m.ProposeEdit(context.Background(), "text", "prompt"); err == nil {
		t.Fatalf("ProposeEdit() error = nil, want status error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (400 is not retryable)", calls)
	}
}

func TestHTTPInstructionModelRetriesOverload(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"subseq_original": "fox", "subseq_edited": "cow"}`))
	}))
	defer srv.Close()

	m := NewHTTPInstructionModel(srv.URL)
	p, err := m.ProposeEdit(context.Background(), "the fox jumps", "make it a cow")
	if err != nil {
		t.Fatalf("ProposeEdit() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if p.OriginalText != "fox" {
		t.Fatalf("proposal = %+v, want fox -> cow", p)
	}
}
