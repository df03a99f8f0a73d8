package session

import (
	"sync"

	"github.com/assessly/proctor/internal/model"
)

// AnswerCache is the live per-question answer store for an active attempt.
// It is seeded from the server's last-known snapshot and mutated locally;
// during a session the cache, not the server field, is the source of truth.
// Entries are never deleted, only overwritten.
type AnswerCache struct {
	mu      sync.RWMutex
	answers map[string]string
	// dirty marks questions written locally since the last seed. A server
	// snapshot may be stale relative to in-flight local typing, so seeded
	// values never overwrite a dirty entry — including one the candidate
	// deliberately cleared.
	dirty map[string]struct{}
}

// NewAnswerCache creates an empty cache.
func NewAnswerCache() *AnswerCache {
	return &AnswerCache{
		answers: make(map[string]string),
		dirty:   make(map[string]struct{}),
	}
}

// Seed merges server-known answers into the cache. Local edits win on
// conflict.
func (c *AnswerCache) Seed(entries []model.AnswerEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if _, localEdit := c.dirty[e.QuestionID]; localEdit {
			continue
		}
		c.answers[e.QuestionID] = e.Answer
	}
}

// Ensure pre-fills an empty entry for every listed question that has no
// entry yet, so snapshots cover the full question set from the start.
func (c *AnswerCache) Ensure(questions []model.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range questions {
		if _, ok := c.answers[q.ID]; !ok {
			c.answers[q.ID] = ""
		}
	}
}

// Set overwrites the answer for a question. It always succeeds; whether
// the session still accepts edits is the caller's concern.
func (c *AnswerCache) Set(questionID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[questionID] = text
	c.dirty[questionID] = struct{}{}
}

// Get returns the answer text for a question, or the empty string if the
// question has never been visited or seeded.
func (c *AnswerCache) Get(questionID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.answers[questionID]
}

// Snapshot returns the submission payload: one entry per question in
// order, with unanswered questions included as empty strings. The same
// full-coverage payload is used at finish, auto-submit, and
// violation-report time.
func (c *AnswerCache) Snapshot(questions []model.Question) []model.AnswerEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]model.AnswerEntry, 0, len(questions))
	for _, q := range questions {
		entries = append(entries, model.AnswerEntry{
			QuestionID: q.ID,
			Answer:     c.answers[q.ID],
		})
	}
	return entries
}

// Answered counts non-empty answers, for display.
func (c *AnswerCache) Answered() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, a := range c.answers {
		if a != "" {
			n++
		}
	}
	return n
}
