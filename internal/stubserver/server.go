// Package stubserver is an in-memory reference backend for the proctor
// client: the wire contract of the real assessment API without its
// storage, scoring or auth. It backs the e2e tests and local development
// via cmd/stubd.
package stubserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/config"
	"github.com/assessly/proctor/internal/model"
)

// defaultQuestions seeds the question set when none is supplied.
var defaultQuestions = []model.Question{
	{ID: "q1", Question: "Tell us about a project you are proud of and the role you played in it."},
	{ID: "q2", Question: "Describe a time you disagreed with a technical decision. How did you handle it?"},
	{ID: "q3", Question: "Walk through how you would design a URL shortening service."},
	{ID: "q4", Question: "What is the most difficult bug you have debugged? How did you find it?"},
	{ID: "q5", Question: "How do you approach testing in a codebase with little existing coverage?"},
	{ID: "q6", Question: "Explain a technical concept you know well to a non-technical audience."},
	{ID: "q7", Question: "Why are you interested in this role?"},
}

// Server serves the assessment API surface the proctor client consumes.
type Server struct {
	cfg       *config.Config
	store     *Store
	questions []model.Question
	log       zerolog.Logger
}

// NewServer creates a stub server with the default question set.
func NewServer(cfg *config.Config, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     NewStore(),
		questions: defaultQuestions,
		log:       log.With().Str("component", "stubserver").Logger(),
	}
}

// Store exposes the backing store, e.g. for the expiry sweeper.
func (s *Server) Store() *Store {
	return s.store
}

// Router configures the Gin engine with all routes under /api.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(s.log))

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/candidates", s.createCandidate)
		apiGroup.POST("/attempts", s.createAttempt)
		apiGroup.GET("/attempts", s.getAttempt)
		apiGroup.GET("/questions", s.listQuestions)
		apiGroup.POST("/attempts/:id/event", s.registerEvent)
		apiGroup.POST("/attempts/:id/submit", s.submitAttempt)
	}

	return router
}

type createCandidateRequest struct {
	Email              string `json:"email" binding:"required,email"`
	LinkedinProfileURL string `json:"linkedin_profile_url" binding:"required,url"`
	GithubProfileURL   string `json:"github_profile_url" binding:"required,url"`
	Resume             string `json:"resume"`
}

type createAttemptRequest struct {
	CandidateID string `json:"candidate_id" binding:"required"`
}

type eventRequest struct {
	Type    model.ViolationType `json:"type" binding:"required"`
	Answers []model.AnswerEntry `json:"answers"`
}

type submitRequest struct {
	Answers      []model.AnswerEntry `json:"answers"`
	IsAutoSubmit bool                `json:"is_auto_submit"`
}

func (s *Server) createCandidate(c *gin.Context) {
	var req createCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid candidate payload", err)
		return
	}

	candidateID := s.store.CreateCandidate(req.Email)
	s.log.Info().Str("candidate_id", candidateID).Str("email", req.Email).Msg("Candidate created")
	c.JSON(http.StatusCreated, gin.H{"candidate_id": candidateID})
}

func (s *Server) createAttempt(c *gin.Context) {
	var req createAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid attempt payload", err)
		return
	}

	rec, err := s.store.CreateAttempt(req.CandidateID, s.cfg.AttemptDuration)
	switch {
	case errors.Is(err, errCandidateNotFound):
		fail(c, http.StatusNotFound, "candidate not found", err)
		return
	case errors.Is(err, errAttemptClosed):
		fail(c, http.StatusConflict, "attempt is no longer active", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "failed to create attempt", err)
		return
	}

	s.log.Info().
		Str("attempt_id", rec.ID).
		Str("candidate_id", rec.CandidateID).
		Time("ends_at", rec.EndsAt).
		Msg("Attempt started")
	c.JSON(http.StatusCreated, gin.H{
		"attempt_id": rec.ID,
		"start_at":   rec.StartAt,
		"ends_at":    rec.EndsAt,
	})
}

func (s *Server) getAttempt(c *gin.Context) {
	candidateID := c.Query("candidate_id")
	if candidateID == "" {
		fail(c, http.StatusBadRequest, "candidate_id is required", nil)
		return
	}

	rec, err := s.store.AttemptByCandidate(candidateID)
	if err != nil {
		fail(c, http.StatusNotFound, "no attempt for candidate", err)
		return
	}

	answers := make([]model.AnswerEntry, 0, len(rec.Answers))
	for questionID, answer := range rec.Answers {
		answers = append(answers, model.AnswerEntry{QuestionID: questionID, Answer: answer})
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id":      rec.ID,
		"start_at":        rec.StartAt,
		"ends_at":         rec.EndsAt,
		"status":          rec.Status,
		"violation_count": rec.ViolationCount,
		"answers":         answers,
	})
}

func (s *Server) listQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": s.questions})
}

func (s *Server) registerEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid event payload", err)
		return
	}

	action, count, err := s.store.RegisterEvent(c.Param("id"), req.Answers, s.cfg.ViolationLimit)
	switch {
	case errors.Is(err, errAttemptNotFound):
		fail(c, http.StatusNotFound, "attempt not found", err)
		return
	case errors.Is(err, errAttemptClosed):
		fail(c, http.StatusConflict, "attempt is no longer active", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "failed to register event", err)
		return
	}

	s.log.Info().
		Str("attempt_id", c.Param("id")).
		Str("type", string(req.Type)).
		Str("action", string(action)).
		Int("violation_count", count).
		Msg("Violation event registered")
	c.JSON(http.StatusOK, gin.H{
		"action":          action,
		"violation_count": count,
	})
}

func (s *Server) submitAttempt(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid submission payload", err)
		return
	}

	err := s.store.Submit(c.Param("id"), req.Answers, req.IsAutoSubmit)
	switch {
	case errors.Is(err, errAttemptNotFound):
		fail(c, http.StatusNotFound, "attempt not found", err)
		return
	case errors.Is(err, errAttemptClosed):
		fail(c, http.StatusConflict, "attempt is no longer active", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "failed to submit attempt", err)
		return
	}

	s.log.Info().
		Str("attempt_id", c.Param("id")).
		Bool("is_auto_submit", req.IsAutoSubmit).
		Int("answers", len(req.Answers)).
		Msg("Attempt submitted")
	c.JSON(http.StatusOK, gin.H{"message": "attempt submitted"})
}

// fail writes the error shape the client expects: {message, error?}.
func fail(c *gin.Context, status int, message string, err error) {
	body := gin.H{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}
