package edit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxedit/voxedit/internal/reliability"
)

// Proposal is the minimal substitution suggested by the instruction
// model: replace OriginalText with EditedText in the transcript.
type Proposal struct {
	OriginalText string `json:"subseq_original"`
	EditedText   string `json:"subseq_edited"`
}

// InstructionModel turns a free-form edit instruction into a concrete
// substitution proposal against the transcript.
type InstructionModel interface {
	ProposeEdit(ctx context.Context, transcript, instruction string) (Proposal, error)
}

// HTTPInstructionModel forwards instructions to an LLM behind an HTTP
// endpoint that accepts a prompt and returns JSON with subseq_original
// and subseq_edited fields.
type HTTPInstructionModel struct {
	url    string
	client *http.Client
}

func NewHTTPInstructionModel(url string) *HTTPInstructionModel {
	return &HTTPInstructionModel{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type modelRequest struct {
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
}

const (
	maxModelAttempts = 3
	retryBackoffBase = 250 * time.Millisecond
	retryBackoffCap  = 2 * time.Second
)

func (m *HTTPInstructionModel) ProposeEdit(ctx context.Context, transcript, instruction string) (Proposal, error) {
	payload, err := json.Marshal(modelRequest{
		Prompt:         buildPrompt(transcript, instruction),
		ResponseFormat: "json",
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxModelAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Proposal{}, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt-1, retryBackoffBase, retryBackoffCap)):
			}
		}

		body, retryable, err := m.send(ctx, payload)
		if err == nil {
			return parseProposal(body)
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Proposal{}, lastErr
}

// send performs one request; the second return reports whether the
// failure is worth retrying.
func (m *HTTPInstructionModel) send(ctx context.Context, payload []byte) ([]byte, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("instruction model http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	return body, false, nil
}

// parseProposal accepts either a bare proposal object or one wrapped in
// a content/text envelope carrying the JSON as a string.
func parseProposal(body []byte) (Proposal, error) {
	var p Proposal
	if err := json.Unmarshal(body, &p); err == nil && (p.OriginalText != "" || p.EditedText != "") {
		return p, nil
	}

	var envelope struct {
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Proposal{}, fmt.Errorf("parse model response: %w", err)
	}
	inner := envelope.Content
	if inner == "" {
		inner = envelope.Text
	}
	if err := json.Unmarshal([]byte(inner), &p); err != nil {
		return Proposal{}, fmt.Errorf("parse model response content: %w", err)
	}
	return p, nil
}

func buildPrompt(transcript, instruction string) string {
	var b strings.Builder
	b.WriteString("Given an original message and an edit prompt, identify the minimal subsequence in the original message `subseq_original` that needs to be replaced and text `subseq_edited` to replace `subseq_original` with.\n")
	b.WriteString("Make sure that subseq_original is a contiguous substring of the original message.\n")
	b.WriteString("Make sure that the message resulting from replacing subseq_original in the original message with subseq_edited is syntactically and semantically correct.\n\n")
	b.WriteString("Example:\n")
	b.WriteString("Original Message: 'The quick brown fox jumps over the lazy dog.'\n")
	b.WriteString("Edit Prompt: 'Turn the fox into a funny yellow cow'\n")
	b.WriteString("JSON Output: {\"subseq_original\": \"fox\", \"subseq_edited\": \"funny yellow cow\"}\n\n")
	fmt.Fprintf(&b, "Original Message: '%s'\n", transcript)
	fmt.Fprintf(&b, "Edit Prompt: '%s'\n", instruction)
	return b.String()
}

// StaticModel returns a fixed proposal. Used in tests and in manual edit
// mode where the caller already knows the substitution.
type StaticModel struct {
	Proposal Proposal
	Err      error
}

func (s *StaticModel) ProposeEdit(_ context.Context, _, _ string) (Proposal, error) {
	if s.Err != nil {
		return Proposal{}, s.Err
	}
	return s.Proposal, nil
}
