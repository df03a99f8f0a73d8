package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/api"
	"github.com/assessly/proctor/internal/config"
	"github.com/assessly/proctor/internal/model"
)

var (
	// ErrNotRunning is returned by mutating operations once the attempt
	// has left the running state. Callers treat it as a signal to route
	// to the status page, not as a failure.
	ErrNotRunning = errors.New("attempt is not running")

	// ErrSubmitInFlight is returned when a submission is already in
	// progress; the competing caller should observe the resulting status
	// transition instead of submitting again.
	ErrSubmitInFlight = errors.New("submission already in progress")

	// ErrStartInFlight is returned when setup is already in progress; the
	// competing caller should wait for the first Start to resolve.
	ErrStartInFlight = errors.New("session start already in progress")
)

// Backend is the subset of the assessment API the controller drives.
// *api.Client satisfies it; tests substitute fakes.
type Backend interface {
	CreateAttempt(ctx context.Context, candidateID string) (*model.Attempt, error)
	GetAttempt(ctx context.Context, candidateID string) (*model.Attempt, error)
	ListQuestions(ctx context.Context) ([]model.Question, error)
	RegisterEvent(ctx context.Context, attemptID string, typ model.ViolationType, answers []model.AnswerEntry) (*api.EventResult, error)
	SubmitAttempt(ctx context.Context, attemptID string, answers []model.AnswerEntry, isAutoSubmit bool) error
}

// Controller owns the attempt lifecycle: it creates or resumes the timed
// attempt, holds the authoritative local state (status, answers, question
// index), drives the countdown timer and security guards, and reconciles
// against the server's view of the attempt. The presentation layer only
// reads state and forwards intents.
type Controller struct {
	mu sync.Mutex

	log         zerolog.Logger
	backend     Backend
	cfg         *config.Config
	candidateID string

	attempt        *model.Attempt
	status         model.AttemptStatus
	questions      []model.Question
	index          int
	violationCount int
	starting       bool
	submitting     bool

	cache  *AnswerCache
	timer  *Timer
	policy *ViolationPolicy
	guards *GuardSet

	// OnTransition is invoked after every status change; the presentation
	// layer routes on it (terminal statuses go to the status page). Set
	// before Start.
	OnTransition func(model.AttemptStatus)

	// OnWarning is invoked with the violation type and the
	// server-acknowledged violation count when a registered event comes
	// back with a warn verdict. Set before Start.
	OnWarning func(model.ViolationType, int)
}

// NewController wires the session core together. guards may be nil when
// the host provides no signal source or countermeasures.
func NewController(backend Backend, candidateID string, cfg *config.Config, guards *GuardSet, log zerolog.Logger) *Controller {
	c := &Controller{
		log:         log.With().Str("component", "session_controller").Logger(),
		backend:     backend,
		cfg:         cfg,
		candidateID: candidateID,
		status:      model.StatusInitializing,
		cache:       NewAnswerCache(),
		timer:       NewTimer(cfg.TickInterval, cfg.AutoSubmitLead, log),
		guards:      guards,
	}
	if c.guards == nil {
		c.guards = NewGuardSet(nil, nil, log)
	}
	c.policy = NewViolationPolicy(cfg.ViolationDedupe, cfg.ViolationCooldown, c.reportViolation, log)
	c.policy.SetHandlers(c.handleWarn, c.handleTerminate, c.handleClosed)
	return c
}

// Start fetches the question set and creates or resumes the attempt. A
// lookup answering 404 triggers creation; a fetched terminal status is
// adopted as-is. On success the attempt is running, the timer is armed
// with the attempt's deadline and the guards are active. A setup failure
// leaves the controller in initializing so the caller can retry; the
// passed context cancels in-flight setup calls if the candidate navigates
// away first. A Start racing an in-flight Start returns ErrStartInFlight.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != model.StatusInitializing {
		c.mu.Unlock()
		return fmt.Errorf("session already started (status %s)", c.status)
	}
	if c.starting {
		c.mu.Unlock()
		return ErrStartInFlight
	}
	// Latched for the duration of setup so concurrent Start calls cannot
	// both pass the initializing check and double-create the attempt.
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	questions, err := c.backend.ListQuestions(ctx)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	att, err := c.backend.GetAttempt(ctx, c.candidateID)
	if errors.Is(err, api.ErrNotFound) {
		att, err = c.backend.CreateAttempt(ctx, c.candidateID)
	}
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}

	c.mu.Lock()
	c.questions = questions
	c.attempt = att
	c.violationCount = att.ViolationCount
	c.cache.Seed(att.Answers)
	c.cache.Ensure(questions)

	if att.Status != "" && att.Status != model.StatusRunning {
		// Resumed an attempt the server already closed.
		c.status = att.Status
		c.mu.Unlock()
		c.log.Info().Str("status", string(att.Status)).Msg("Attempt already closed at resume")
		c.notify(att.Status)
		return nil
	}

	c.status = model.StatusRunning
	c.mu.Unlock()

	c.timer.Start(att.EndsAt, c.handleExpired)
	c.guards.Activate(c.HandleSignal)
	c.log.Info().
		Str("attempt_id", att.ID).
		Time("ends_at", att.EndsAt).
		Msg("Attempt running")
	c.notify(model.StatusRunning)
	return nil
}

// Refresh re-fetches the server's view of the attempt and reconciles.
// Reconciliation is asymmetric: a fetched terminal status overrides a
// locally running one, but local state never moves backwards — a stale
// fetch that raced behind a completed submit cannot resurrect running.
// A refreshed deadline re-arms the timer, invalidating any pending expiry
// from the stale deadline.
func (c *Controller) Refresh(ctx context.Context) error {
	att, err := c.backend.GetAttempt(ctx, c.candidateID)
	if err != nil {
		return fmt.Errorf("refresh attempt: %w", err)
	}

	c.mu.Lock()
	c.violationCount = att.ViolationCount

	if att.Status.Terminal() && att.Status.Progress() > c.status.Progress() {
		c.mu.Unlock()
		c.transition(att.Status)
		return nil
	}

	if c.status == model.StatusRunning && c.attempt != nil &&
		!att.EndsAt.IsZero() && !att.EndsAt.Equal(c.attempt.EndsAt) {
		c.attempt.EndsAt = att.EndsAt
		c.mu.Unlock()
		c.timer.Start(att.EndsAt, c.handleExpired)
		c.log.Info().Time("ends_at", att.EndsAt).Msg("Deadline refreshed from server")
		return nil
	}

	c.mu.Unlock()
	return nil
}

// Finish submits the attempt after the candidate's explicit confirmation
// (the confirmation dialog is the presentation's job). Only the first of
// a racing finish click and timer expiry acquires the submission; the
// loser observes ErrSubmitInFlight or ErrNotRunning and backs off. A
// failed submit keeps the attempt running for a retry, except a conflict,
// which is the server saying the attempt already closed.
func (c *Controller) Finish(ctx context.Context) error {
	c.mu.Lock()
	if c.status != model.StatusRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.submitting = true
	attemptID := c.attempt.ID
	payload := c.cache.Snapshot(c.questions)
	c.mu.Unlock()

	err := c.backend.SubmitAttempt(ctx, attemptID, payload, false)
	if err == nil {
		c.transition(model.StatusSubmitted)
		return nil
	}
	if errors.Is(err, api.ErrConflict) {
		// Attempt closed server-side (expired behind our back); adopt it.
		c.transition(model.StatusAutoSubmitted)
		return nil
	}

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
	return err
}

// Exit terminates the attempt on the candidate's explicit, confirmed
// exit intent (e.g. a confirmed hard refresh).
func (c *Controller) Exit() {
	c.transition(model.StatusTerminated)
}

// HandleSignal feeds one environment signal into the violation policy.
// Signals arriving once the attempt is no longer running are dropped.
func (c *Controller) HandleSignal(sig Signal) {
	c.mu.Lock()
	running := c.status == model.StatusRunning
	c.mu.Unlock()
	if !running {
		return
	}
	c.policy.Offer(context.Background(), sig.Type)
}

// SetAnswer overwrites the answer for the currently displayed question.
// No-op once the attempt is no longer running.
func (c *Controller) SetAnswer(text string) {
	c.mu.Lock()
	if c.status != model.StatusRunning || c.index >= len(c.questions) {
		c.mu.Unlock()
		return
	}
	questionID := c.questions[c.index].ID
	c.mu.Unlock()
	c.cache.Set(questionID, text)
}

// Next moves to the next question, clamped to the question count.
func (c *Controller) Next() {
	c.move(1)
}

// Previous moves to the previous question, clamped to zero.
func (c *Controller) Previous() {
	c.move(-1)
}

// move is pure local index movement; it never contacts the backend.
// Answers persist to the server via violation reports and submission.
func (c *Controller) move(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.StatusRunning {
		return
	}
	next := c.index + delta
	if max := len(c.questions) - 1; next > max {
		next = max
	}
	if next < 0 {
		next = 0
	}
	c.index = next
}

// handleExpired is the timer's expiry callback. It auto-submits the full
// answer snapshot; if the network call fails the local transition still
// happens, because a submission timeout must not trap the candidate in an
// expired-but-not-redirected state. The call runs on a detached timeout
// context: there is no user request context at expiry.
func (c *Controller) handleExpired() {
	c.mu.Lock()
	if c.status != model.StatusRunning || c.submitting {
		c.mu.Unlock()
		return
	}
	c.submitting = true
	attemptID := c.attempt.ID
	payload := c.cache.Snapshot(c.questions)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTPTimeout)
	defer cancel()
	if err := c.backend.SubmitAttempt(ctx, attemptID, payload, true); err != nil {
		c.log.Error().Err(err).Msg("Auto-submit failed, transitioning locally anyway")
	}
	c.transition(model.StatusAutoSubmitted)
}

// reportViolation is the policy's report hook: it attaches the attempt ID
// and the current answer snapshot to the registered event.
func (c *Controller) reportViolation(ctx context.Context, typ model.ViolationType) (*api.EventResult, error) {
	c.mu.Lock()
	if c.status != model.StatusRunning || c.attempt == nil {
		c.mu.Unlock()
		return nil, ErrNotRunning
	}
	attemptID := c.attempt.ID
	payload := c.cache.Snapshot(c.questions)
	c.mu.Unlock()

	return c.backend.RegisterEvent(ctx, attemptID, typ, payload)
}

func (c *Controller) handleWarn(typ model.ViolationType, violationCount int) {
	c.mu.Lock()
	// The count is server-acknowledged; the client never increments ahead
	// of confirmation.
	c.violationCount = violationCount
	c.mu.Unlock()
	if c.OnWarning != nil {
		c.OnWarning(typ, violationCount)
	}
}

func (c *Controller) handleTerminate() {
	c.transition(model.StatusTerminated)
}

func (c *Controller) handleClosed() {
	c.transition(model.StatusAutoSubmitted)
}

// transition moves the status forward. Status is monotonic: a terminal
// state is never left, and entering one stops the timer, deactivates the
// guards and halts the violation policy.
func (c *Controller) transition(to model.AttemptStatus) {
	c.mu.Lock()
	if c.status.Terminal() || to == c.status {
		c.mu.Unlock()
		return
	}
	c.status = to
	c.mu.Unlock()

	c.log.Info().Str("status", string(to)).Msg("Status transition")

	if to.Terminal() {
		c.timer.Stop()
		c.policy.Halt()
		c.guards.Deactivate()
	}
	c.notify(to)
}

func (c *Controller) notify(to model.AttemptStatus) {
	if c.OnTransition != nil {
		c.OnTransition(to)
	}
}

// ─── Read-only accessors for the presentation layer ────────────────────

// Status returns the current attempt status.
func (c *Controller) Status() model.AttemptStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// AttemptID returns the attempt identifier, or "" before creation.
func (c *Controller) AttemptID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return ""
	}
	return c.attempt.ID
}

// ViolationCount returns the server-acknowledged violation count.
func (c *Controller) ViolationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violationCount
}

// RemainingLabel formats the time remaining as MM:SS for display.
func (c *Controller) RemainingLabel() string {
	return FormatRemaining(c.timer.Remaining())
}

// CurrentQuestion returns the displayed question, its zero-based index,
// and the cached answer text. ok is false until questions are loaded.
func (c *Controller) CurrentQuestion() (q model.Question, index int, answer string, ok bool) {
	c.mu.Lock()
	if c.index >= len(c.questions) {
		c.mu.Unlock()
		return model.Question{}, 0, "", false
	}
	q = c.questions[c.index]
	index = c.index
	c.mu.Unlock()
	return q, index, c.cache.Get(q.ID), true
}

// QuestionCount returns the number of questions in the session.
func (c *Controller) QuestionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.questions)
}

// Answered returns how many questions currently have non-empty answers.
func (c *Controller) Answered() int {
	return c.cache.Answered()
}
