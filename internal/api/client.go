package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/model"
)

// Client talks to the assessment backend. The backend is an opaque HTTP
// collaborator: the client never assumes anything about its storage or
// scoring, only the wire contract below.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a backend client rooted at baseURL (e.g.
// "http://localhost:5000/api").
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "api_client").Logger(),
	}
}

// CandidatePayload is the intake registration request.
type CandidatePayload struct {
	Email              string `json:"email"`
	LinkedinProfileURL string `json:"linkedin_profile_url"`
	GithubProfileURL   string `json:"github_profile_url"`
	Resume             string `json:"resume,omitempty"`
}

// EventResult is the server's verdict on a registered violation event.
type EventResult struct {
	Action         model.EventAction `json:"action"`
	ViolationCount int               `json:"violation_count"`
}

type candidateResponse struct {
	CandidateID string `json:"candidate_id"`
}

type questionsResponse struct {
	Questions []model.Question `json:"questions"`
}

type submitRequest struct {
	Answers      []model.AnswerEntry `json:"answers"`
	IsAutoSubmit bool                `json:"is_auto_submit"`
}

type eventRequest struct {
	Type    model.ViolationType `json:"type"`
	Answers []model.AnswerEntry `json:"answers"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// CreateCandidate registers a candidate and returns the assigned ID.
func (c *Client) CreateCandidate(ctx context.Context, payload CandidatePayload) (string, error) {
	var out candidateResponse
	if err := c.do(ctx, http.MethodPost, "/candidates", payload, &out); err != nil {
		return "", fmt.Errorf("create candidate: %w", err)
	}
	return out.CandidateID, nil
}

// CreateAttempt starts a new attempt for the candidate. The returned
// attempt carries the fixed time window; status is running by definition.
func (c *Client) CreateAttempt(ctx context.Context, candidateID string) (*model.Attempt, error) {
	var out model.Attempt
	body := map[string]string{"candidate_id": candidateID}
	if err := c.do(ctx, http.MethodPost, "/attempts", body, &out); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	out.Status = model.StatusRunning
	return &out, nil
}

// GetAttempt fetches the candidate's existing attempt. Returns ErrNotFound
// when no attempt exists yet.
func (c *Client) GetAttempt(ctx context.Context, candidateID string) (*model.Attempt, error) {
	var out model.Attempt
	path := "/attempts?candidate_id=" + url.QueryEscape(candidateID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return &out, nil
}

// ListQuestions fetches the question set for the session.
func (c *Client) ListQuestions(ctx context.Context) ([]model.Question, error) {
	var out questionsResponse
	if err := c.do(ctx, http.MethodGet, "/questions", nil, &out); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return out.Questions, nil
}

// RegisterEvent reports a violation together with the current answer
// snapshot, so a server-side forced termination never loses in-progress
// work. Returns ErrConflict if the attempt is already closed.
func (c *Client) RegisterEvent(ctx context.Context, attemptID string, typ model.ViolationType, answers []model.AnswerEntry) (*EventResult, error) {
	var out EventResult
	path := "/attempts/" + url.PathEscape(attemptID) + "/event"
	if err := c.do(ctx, http.MethodPost, path, eventRequest{Type: typ, Answers: answers}, &out); err != nil {
		return nil, fmt.Errorf("register event: %w", err)
	}
	return &out, nil
}

// SubmitAttempt submits the full answer payload. Returns ErrConflict if
// the attempt is already closed server-side.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, answers []model.AnswerEntry, isAutoSubmit bool) error {
	path := "/attempts/" + url.PathEscape(attemptID) + "/submit"
	req := submitRequest{Answers: answers, IsAutoSubmit: isAutoSubmit}
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	return nil
}

// do executes one JSON request/response round trip. 404 and 409 map to
// the sentinel errors; other non-2xx statuses become *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend call")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &Error{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
