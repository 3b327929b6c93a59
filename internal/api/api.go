// Package api exposes the tracking pipeline over JSON/HTTP. The event and
// lead submission endpoints are public (they are called by anonymous visitor
// instrumentation); everything owner-facing sits behind the bearer-token
// middleware.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/crivus/quizlead/internal/analytics"
	"github.com/crivus/quizlead/internal/auth"
	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
	"github.com/crivus/quizlead/internal/event"
	"github.com/crivus/quizlead/internal/lead"
	"github.com/crivus/quizlead/internal/quiz"
	"github.com/crivus/quizlead/internal/tracking"
)

type Config struct {
	Router       *gin.Engine
	Verifier     *auth.Verifier
	EventBus     *event.Bus
	Tracking     *tracking.Service
	Lead         *lead.Service
	Quiz         *quiz.Service
	Analytics    *analytics.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	tracking  *tracking.Service
	lead      *lead.Service
	quiz      *quiz.Service
	analytics *analytics.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		tracking:  c.Tracking,
		lead:      c.Lead,
		quiz:      c.Quiz,
		analytics: c.Analytics,
		redis:     c.Redis,
		prefix:    c.PubsubPrefix,
	}

	r := c.Router

	// Public ingestion endpoints.
	r.POST("/api/event", a.TrackEvent)
	r.POST("/api/lead", a.SubmitLead)
	r.GET("/api/tracker/:tracking_code", a.ResolveTracker)

	// Owner endpoints.
	owned := r.Group("/api", c.Verifier.RequireOwner())
	owned.GET("/lead/:lead_id", a.GetLeadJourney)
	owned.POST("/quiz", a.RegisterQuiz)
	owned.GET("/quiz", a.ListQuizzes)
	owned.PATCH("/quiz/:quiz_id", a.UpdateQuiz)
	owned.DELETE("/quiz/:quiz_id", a.DeleteQuiz)
	owned.GET("/quiz/:quiz_id/leads", a.ListQuizLeads)
	owned.GET("/quiz/:quiz_id/analytics", a.GetQuizAnalytics)

	// Notification fanout.
	c.EventBus.Subscribe(domain.EventNameLeadCreated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeadCreated(ctx, e.(domain.EventLeadCreated))
	})
	c.EventBus.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return a.PublishSessionCompleted(ctx, e.(domain.EventSessionCompleted))
	})

	return a
}

type trackEventRequest struct {
	SessionID      string    `json:"session_id"`
	QuizID         string    `json:"quiz_id"`
	EventType      string    `json:"event_type"`
	QuestionNumber *int      `json:"question_number"`
	QuestionID     string    `json:"question_id"`
	Answer         string    `json:"answer"`
	TimeSpent      *int      `json:"time_spent"`
	CreatedAt      time.Time `json:"created_at"`

	Device      string `json:"device"`
	Browser     string `json:"browser"`
	OS          string `json:"os"`
	Referrer    string `json:"referrer"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}

func (a *API) TrackEvent(c *gin.Context) {
	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	e, err := a.tracking.TrackEvent(c.Request.Context(), tracking.TrackEventRequest{
		SessionToken:   req.SessionID,
		QuizID:         req.QuizID,
		EventType:      req.EventType,
		QuestionNumber: req.QuestionNumber,
		QuestionID:     req.QuestionID,
		Answer:         req.Answer,
		TimeSpent:      req.TimeSpent,
		CreatedAt:      req.CreatedAt,
		Attribution: domain.Attribution{
			Device:      req.Device,
			Browser:     req.Browser,
			OS:          req.OS,
			Referrer:    req.Referrer,
			UTMSource:   req.UTMSource,
			UTMMedium:   req.UTMMedium,
			UTMCampaign: req.UTMCampaign,
			UTMTerm:     req.UTMTerm,
			UTMContent:  req.UTMContent,
		},
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event_id": e.EventID})
}

type submitLeadRequest struct {
	SessionID  string `json:"session_id"`
	QuizID     string `json:"quiz_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	QuizResult string `json:"quiz_result"`
}

func (a *API) SubmitLead(c *gin.Context) {
	var req submitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	l, err := a.lead.SubmitLead(c.Request.Context(), lead.SubmitLeadRequest{
		SessionToken: req.SessionID,
		QuizID:       req.QuizID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		QuizResult:   req.QuizResult,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"lead_id": l.LeadID})
}

func (a *API) ResolveTracker(c *gin.Context) {
	q, err := a.quiz.FindByTrackingCode(c.Request.Context(), c.Param("tracking_code"))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz_id": q.QuizID,
		"url":     q.URL,
	})
}

type journeyEntry struct {
	Type      string    `json:"type"`
	Question  string    `json:"question,omitempty"`
	Order     *int      `json:"order,omitempty"`
	Answer    string    `json:"answer,omitempty"`
	Time      *int      `json:"time,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type journeyResponse struct {
	LeadID      string         `json:"lead_id"`
	SessionID   string         `json:"session_id"`
	QuizID      string         `json:"quiz_id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone,omitempty"`
	QuizResult  string         `json:"quiz_result,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	UserJourney []journeyEntry `json:"user_journey"`
}

func (a *API) GetLeadJourney(c *gin.Context) {
	j, err := a.lead.GetJourney(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		renderError(c, err)
		return
	}

	resp := journeyResponse{
		LeadID:      j.Lead.LeadID,
		SessionID:   j.Lead.SessionID,
		QuizID:      j.Lead.QuizID,
		Name:        j.Lead.Name,
		Email:       j.Lead.Email,
		Phone:       j.Lead.Phone,
		QuizResult:  j.Lead.QuizResult,
		Timestamp:   j.Lead.CreatedAt,
		UserJourney: make([]journeyEntry, 0, len(j.Entries)),
	}

	for _, e := range j.Entries {
		resp.UserJourney = append(resp.UserJourney, journeyEntry{
			Type:      e.Type,
			Question:  e.Question,
			Order:     e.Order,
			Answer:    e.Answer,
			Time:      e.TimeSpent,
			Timestamp: e.Timestamp,
		})
	}

	c.JSON(http.StatusOK, resp)
}

type leadSummary struct {
	LeadID     string    `json:"lead_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	QuizResult string    `json:"quiz_result,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (a *API) ListQuizLeads(c *gin.Context) {
	leads, err := a.lead.ListLeads(c.Request.Context(), c.Param("quiz_id"))
	if err != nil {
		renderError(c, err)
		return
	}

	resp := make([]leadSummary, 0, len(leads))
	for _, l := range leads {
		resp = append(resp, leadSummary{
			LeadID:     l.LeadID,
			Name:       l.Name,
			Email:      l.Email,
			Phone:      l.Phone,
			QuizResult: l.QuizResult,
			Timestamp:  l.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetQuizAnalytics(c *gin.Context) {
	r, err := a.analytics.QuizAnalytics(c.Request.Context(), c.Param("quiz_id"))
	if err != nil {
		renderError(c, err)
		return
	}

	abandonment := make([]gin.H, 0, len(r.Abandonment))
	for _, q := range r.Abandonment {
		abandonment = append(abandonment, gin.H{
			"question_id":  q.QuestionID,
			"views":        q.Views,
			"abandons":     q.Abandons,
			"abandon_rate": q.AbandonRate,
			"avg_time":     q.AvgTime,
		})
	}

	top := make([]gin.H, 0, len(r.TopAbandonment))
	for _, q := range r.TopAbandonment {
		top = append(top, gin.H{
			"question_order": q.QuestionOrder,
			"abandon_rate":   q.AbandonRate,
		})
	}

	f := r.Funnel
	c.JSON(http.StatusOK, gin.H{
		"funnel": gin.H{
			"total_visits":     f.TotalVisits,
			"quiz_starts":      f.QuizStarts,
			"quiz_completions": f.QuizCompletions,
			"total_leads":      f.TotalLeads,
			"quiz_start_rate":  f.QuizStartRate,
			"completion_rate":  f.CompletionRate,
			"conversion_rate":  f.ConversionRate,
		},
		"abandonment":               abandonment,
		"top_abandonment_questions": top,
	})
}

type registerQuizRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (a *API) RegisterQuiz(c *gin.Context) {
	var req registerQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	q, err := a.quiz.Register(c.Request.Context(), quiz.RegisterRequest{
		Title: req.Title,
		URL:   req.URL,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"quiz_id":       q.QuizID,
		"tracking_code": q.TrackingCode,
	})
}

func (a *API) ListQuizzes(c *gin.Context) {
	quizzes, err := a.quiz.ListOwned(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	type quizSummary struct {
		QuizID       string    `json:"quiz_id"`
		Title        string    `json:"title"`
		URL          string    `json:"url"`
		TrackingCode string    `json:"tracking_code"`
		CreatedAt    time.Time `json:"created_at"`
	}

	resp := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		resp = append(resp, quizSummary{
			QuizID:       q.QuizID,
			Title:        q.Title,
			URL:          q.URL,
			TrackingCode: q.TrackingCode,
			CreatedAt:    q.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) UpdateQuiz(c *gin.Context) {
	var req registerQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	q, err := a.quiz.Update(c.Request.Context(), quiz.UpdateRequest{
		QuizID: c.Param("quiz_id"),
		Title:  req.Title,
		URL:    req.URL,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz_id": q.QuizID,
		"title":   q.Title,
		"url":     q.URL,
	})
}

func (a *API) DeleteQuiz(c *gin.Context) {
	if err := a.quiz.Delete(c.Request.Context(), c.Param("quiz_id")); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// renderError translates any error into the public taxonomy. Internal causes
// are logged, never returned to the client.
func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"path", c.FullPath(),
			"error", e,
		)
	}

	c.JSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}
