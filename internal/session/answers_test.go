package session

import (
	"testing"

	"github.com/assessly/proctor/internal/model"
)

func TestAnswerCacheLocalEditWinsOverSeed(t *testing.T) {
	cache := NewAnswerCache()
	cache.Set("q1", "local-b")
	cache.Seed([]model.AnswerEntry{{QuestionID: "q1", Answer: "server-a"}})

	if got := cache.Get("q1"); got != "local-b" {
		t.Fatalf("Get(q1) = %q, want local edit to win", got)
	}
}

func TestAnswerCacheSeedFillsUntouchedEntries(t *testing.T) {
	cache := NewAnswerCache()
	cache.Ensure([]model.Question{{ID: "q1"}, {ID: "q2"}})
	cache.Seed([]model.AnswerEntry{
		{QuestionID: "q1", Answer: "server-a"},
		{QuestionID: "q3", Answer: "server-c"},
	})

	if got := cache.Get("q1"); got != "server-a" {
		t.Errorf("Get(q1) = %q, want seeded value over empty pre-fill", got)
	}
	if got := cache.Get("q3"); got != "server-c" {
		t.Errorf("Get(q3) = %q, want seeded value", got)
	}
}

func TestAnswerCacheLocallyClearedAnswerResistsSeed(t *testing.T) {
	cache := NewAnswerCache()
	cache.Set("q1", "draft")
	cache.Set("q1", "")
	cache.Seed([]model.AnswerEntry{{QuestionID: "q1", Answer: "stale-server-copy"}})

	if got := cache.Get("q1"); got != "" {
		t.Fatalf("Get(q1) = %q, want deliberate clear preserved", got)
	}
}

func TestAnswerCacheGetUnknownQuestion(t *testing.T) {
	cache := NewAnswerCache()
	if got := cache.Get("never-visited"); got != "" {
		t.Fatalf("Get(unknown) = %q, want empty string", got)
	}
}

func TestAnswerCacheSnapshotCoversAllQuestions(t *testing.T) {
	questions := []model.Question{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}}
	cache := NewAnswerCache()
	cache.Ensure(questions)
	cache.Set("q1", "only answer")

	snap := cache.Snapshot(questions)
	if len(snap) != 3 {
		t.Fatalf("snapshot has %d entries, want 3", len(snap))
	}
	want := map[string]string{"q1": "only answer", "q2": "", "q3": ""}
	for _, entry := range snap {
		if entry.Answer != want[entry.QuestionID] {
			t.Errorf("snapshot[%s] = %q, want %q", entry.QuestionID, entry.Answer, want[entry.QuestionID])
		}
	}
}

func TestAnswerCacheAnswered(t *testing.T) {
	cache := NewAnswerCache()
	cache.Ensure([]model.Question{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}})
	cache.Set("q1", "a")
	cache.Set("q2", "b")
	cache.Set("q2", "")

	if got := cache.Answered(); got != 1 {
		t.Fatalf("Answered() = %d, want 1", got)
	}
}
