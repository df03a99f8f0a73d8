package stubserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assessly/proctor/internal/model"
)

var (
	errCandidateNotFound = errors.New("candidate not found")
	errAttemptNotFound   = errors.New("attempt not found")
	errAttemptClosed     = errors.New("attempt is no longer active")
)

type candidate struct {
	ID    string
	Email string
}

// attemptRecord is the server-side view of an attempt. Answers holds the
// last snapshot received with a violation report or submission, so a
// forced termination never loses in-progress work.
type attemptRecord struct {
	ID             string
	CandidateID    string
	StartAt        time.Time
	EndsAt         time.Time
	Status         model.AttemptStatus
	ViolationCount int
	Answers        map[string]string
}

// snapshot returns a value copy that is safe to read after the store lock
// is released. Handlers never see live records: gin serves requests
// concurrently, and a handler iterating the Answers map while an event
// writes to it would crash the process. Caller holds the lock.
func (r *attemptRecord) snapshot() *attemptRecord {
	cp := *r
	cp.Answers = make(map[string]string, len(r.Answers))
	for questionID, answer := range r.Answers {
		cp.Answers[questionID] = answer
	}
	return &cp
}

// Store is the stub's in-memory state. One attempt per candidate.
type Store struct {
	mu          sync.Mutex
	candidates  map[string]*candidate
	byCandidate map[string]*attemptRecord
	byID        map[string]*attemptRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		candidates:  make(map[string]*candidate),
		byCandidate: make(map[string]*attemptRecord),
		byID:        make(map[string]*attemptRecord),
	}
}

// CreateCandidate registers a candidate and returns the assigned ID.
func (s *Store) CreateCandidate(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &candidate{ID: uuid.New().String(), Email: email}
	s.candidates[c.ID] = c
	return c.ID
}

// CreateAttempt starts an attempt with the given duration. Creation is
// idempotent per candidate: an existing running attempt is returned
// as-is, while a closed one answers errAttemptClosed.
func (s *Store) CreateAttempt(candidateID string, duration time.Duration) (*attemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.candidates[candidateID]; !ok {
		return nil, errCandidateNotFound
	}

	if existing, ok := s.byCandidate[candidateID]; ok {
		s.expireIfDue(existing)
		if existing.Status != model.StatusRunning {
			return nil, errAttemptClosed
		}
		return existing.snapshot(), nil
	}

	now := time.Now()
	rec := &attemptRecord{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		StartAt:     now,
		EndsAt:      now.Add(duration),
		Status:      model.StatusRunning,
		Answers:     make(map[string]string),
	}
	s.byCandidate[candidateID] = rec
	s.byID[rec.ID] = rec
	return rec.snapshot(), nil
}

// AttemptByCandidate looks up the candidate's attempt, applying lazy
// expiry: a running attempt past its deadline flips to auto_submitted.
func (s *Store) AttemptByCandidate(candidateID string) (*attemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byCandidate[candidateID]
	if !ok {
		return nil, errAttemptNotFound
	}
	s.expireIfDue(rec)
	return rec.snapshot(), nil
}

// RegisterEvent applies one violation event: increments the count, stores
// the attached answer snapshot, and decides warn vs terminate against the
// configured limit. errAttemptClosed if the attempt is not running.
func (s *Store) RegisterEvent(attemptID string, answers []model.AnswerEntry, violationLimit int) (model.EventAction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[attemptID]
	if !ok {
		return "", 0, errAttemptNotFound
	}
	s.expireIfDue(rec)
	if rec.Status != model.StatusRunning {
		return "", 0, errAttemptClosed
	}

	rec.ViolationCount++
	s.saveAnswers(rec, answers)

	if rec.ViolationCount >= violationLimit {
		rec.Status = model.StatusTerminated
		return model.ActionTerminate, rec.ViolationCount, nil
	}
	return model.ActionWarn, rec.ViolationCount, nil
}

// Submit closes the attempt with the final answer payload.
// errAttemptClosed if it is not running anymore.
func (s *Store) Submit(attemptID string, answers []model.AnswerEntry, isAutoSubmit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[attemptID]
	if !ok {
		return errAttemptNotFound
	}
	s.expireIfDue(rec)
	if rec.Status != model.StatusRunning {
		return errAttemptClosed
	}

	s.saveAnswers(rec, answers)
	if isAutoSubmit {
		rec.Status = model.StatusAutoSubmitted
	} else {
		rec.Status = model.StatusSubmitted
	}
	return nil
}

func (s *Store) saveAnswers(rec *attemptRecord, answers []model.AnswerEntry) {
	for _, a := range answers {
		rec.Answers[a.QuestionID] = a.Answer
	}
}

// ExpireOverdue sweeps all attempts and applies expiry, returning how many
// attempts were flipped. Used by the background sweeper.
func (s *Store) ExpireOverdue() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, rec := range s.byID {
		before := rec.Status
		s.expireIfDue(rec)
		if before != rec.Status {
			expired++
		}
	}
	return expired
}

// expireIfDue flips a running attempt past its deadline to
// auto_submitted. Caller holds the lock.
func (s *Store) expireIfDue(rec *attemptRecord) {
	if rec.Status == model.StatusRunning && time.Now().After(rec.EndsAt) {
		rec.Status = model.StatusAutoSubmitted
	}
}
