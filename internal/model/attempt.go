package model

import "time"

// AttemptStatus enumerates the lifecycle states of an exam attempt.
// Once an attempt leaves StatusRunning it never returns to it.
type AttemptStatus string

const (
	// StatusInitializing is the client-side pre-state before an attempt
	// exists or has been resumed. It never appears on the wire.
	StatusInitializing  AttemptStatus = "initializing"
	StatusRunning       AttemptStatus = "running"
	StatusSubmitted     AttemptStatus = "submitted"
	StatusAutoSubmitted AttemptStatus = "auto_submitted"
	StatusTerminated    AttemptStatus = "terminated"
)

// Terminal reports whether the status is final for the session.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case StatusSubmitted, StatusAutoSubmitted, StatusTerminated:
		return true
	}
	return false
}

// Progress orders statuses along the attempt lifecycle so reconciliation
// can refuse to move backwards (e.g. a stale fetch returning "running"
// after a local submit already completed).
func (s AttemptStatus) Progress() int {
	switch s {
	case StatusInitializing:
		return 0
	case StatusRunning:
		return 1
	default:
		return 2
	}
}

// Label returns the candidate-facing description of the status.
func (s AttemptStatus) Label() string {
	switch s {
	case StatusRunning:
		return "Attempt in progress"
	case StatusSubmitted:
		return "Attempt submitted successfully"
	case StatusAutoSubmitted:
		return "Time up — attempt expired"
	case StatusTerminated:
		return "Attempt terminated due to policy violation"
	default:
		return "Preparing attempt..."
	}
}

// Attempt is the authoritative session record. StartAt and EndsAt define
// the fixed time window and are set once at creation; the client never
// mutates them. ViolationCount is incremented only by the server.
type Attempt struct {
	ID             string        `json:"attempt_id"`
	StartAt        time.Time     `json:"start_at"`
	EndsAt         time.Time     `json:"ends_at"`
	Status         AttemptStatus `json:"status"`
	ViolationCount int           `json:"violation_count"`
	Answers        []AnswerEntry `json:"answers,omitempty"`
}

// Question is a single exam question. The ID is opaque and stable; the
// text is immutable within a session.
type Question struct {
	ID       string `json:"question_id"`
	Question string `json:"question"`
}

// AnswerEntry pairs a question with the candidate's answer text. The
// answer may be empty: submission payloads cover every question, answered
// or not.
type AnswerEntry struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}
