package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/model"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api", time.Second, zerolog.Nop())
}

func TestCreateCandidate(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/candidates" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}

		var payload CandidatePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Email != "dev@example.com" {
			t.Errorf("email = %q", payload.Email)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"candidate_id": "cand-42"})
	}))

	id, err := client.CreateCandidate(context.Background(), CandidatePayload{
		Email:              "dev@example.com",
		LinkedinProfileURL: "https://linkedin.com/in/dev",
		GithubProfileURL:   "https://github.com/dev",
	})
	if err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	if id != "cand-42" {
		t.Fatalf("candidate ID = %q, want cand-42", id)
	}
}

func TestCreateAttemptMarksRunning(t *testing.T) {
	endsAt := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/attempts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["candidate_id"] != "cand-42" {
			t.Errorf("candidate_id = %q", body["candidate_id"])
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"attempt_id": "att-1",
			"start_at":   time.Now().UTC(),
			"ends_at":    endsAt,
		})
	}))

	att, err := client.CreateAttempt(context.Background(), "cand-42")
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	if att.ID != "att-1" {
		t.Fatalf("attempt ID = %q", att.ID)
	}
	if att.Status != model.StatusRunning {
		t.Fatalf("status = %s, want running", att.Status)
	}
	if !att.EndsAt.Equal(endsAt) {
		t.Fatalf("ends_at = %v, want %v", att.EndsAt, endsAt)
	}
}

func TestGetAttemptNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("candidate_id"); got != "cand-42" {
			t.Errorf("candidate_id query = %q", got)
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetAttempt(context.Background(), "cand-42")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListQuestions(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/questions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"questions": []model.Question{
				{ID: "q1", Question: "first"},
				{ID: "q2", Question: "second"},
			},
		})
	}))

	questions, err := client.ListQuestions(context.Background())
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 2 || questions[0].ID != "q1" || questions[1].Question != "second" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
}

func TestRegisterEventSendsSnapshot(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/attempts/att-1/event" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Type    model.ViolationType `json:"type"`
			Answers []model.AnswerEntry `json:"answers"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Type != model.ViolationWindowBlur {
			t.Errorf("type = %s", body.Type)
		}
		if len(body.Answers) != 2 {
			t.Errorf("answers = %+v", body.Answers)
		}
		json.NewEncoder(w).Encode(EventResult{Action: model.ActionWarn, ViolationCount: 1})
	}))

	answers := []model.AnswerEntry{{QuestionID: "q1", Answer: "a"}, {QuestionID: "q2", Answer: ""}}
	result, err := client.RegisterEvent(context.Background(), "att-1", model.ViolationWindowBlur, answers)
	if err != nil {
		t.Fatalf("RegisterEvent: %v", err)
	}
	if result.Action != model.ActionWarn || result.ViolationCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRegisterEventConflict(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	_, err := client.RegisterEvent(context.Background(), "att-1", model.ViolationWindowBlur, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestSubmitAttempt(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/attempts/att-1/submit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Answers      []model.AnswerEntry `json:"answers"`
			IsAutoSubmit bool                `json:"is_auto_submit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if !body.IsAutoSubmit {
			t.Error("is_auto_submit not set")
		}
		w.WriteHeader(http.StatusOK)
	}))

	answers := []model.AnswerEntry{{QuestionID: "q1", Answer: "a"}}
	if err := client.SubmitAttempt(context.Background(), "att-1", answers, true); err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
}

func TestSubmitAttemptConflict(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "attempt is closed"})
	}))

	err := client.SubmitAttempt(context.Background(), "att-1", nil, false)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestServerErrorCarriesStatusAndMessage(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "storage unavailable"})
	}))

	_, err := client.ListQuestions(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "storage unavailable" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}
