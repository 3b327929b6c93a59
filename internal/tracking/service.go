// Package tracking ingests quiz funnel events. It owns the find-or-create
// session step and guarantees no event is ever written without a session row
// to attribute it to.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
	"github.com/crivus/quizlead/internal/event"
)

// CreateOutcome tags the result of a session insert so a lost race against a
// concurrent first event is an explicit, non-error case.
type CreateOutcome int

const (
	SessionCreated CreateOutcome = iota
	SessionAlreadyExists
)

// Store is the durable side of the pipeline. Implementations must enforce a
// unique key on (quiz_id, session_token); CreateSession reports a duplicate
// as SessionAlreadyExists, never as an error.
type Store interface {
	// FindSession returns CodeNotFound when no session matches.
	FindSession(ctx context.Context, quizID, sessionToken string) (*domain.Session, error)
	CreateSession(ctx context.Context, s *domain.Session) (CreateOutcome, error)
	// MarkCompleted sets completed_at once. Unknown sessions and repeated
	// completions are no-ops.
	MarkCompleted(ctx context.Context, quizID, sessionToken string, at time.Time) error
	AppendEvent(ctx context.Context, e *domain.Event) error
	// ListSessionEvents returns events ascending by created_at, ties broken
	// by insertion order.
	ListSessionEvents(ctx context.Context, sessionID string) ([]domain.Event, error)
}

type Config struct {
	Store    Store
	EventBus *event.Bus
}

type Service struct {
	store Store
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		eb:    c.EventBus,
	}
}

// TrackEventRequest is one event submission from the client instrumentation.
type TrackEventRequest struct {
	SessionToken string
	QuizID       string
	EventType    string

	QuestionNumber *int
	QuestionID     string
	Answer         string
	TimeSpent      *int

	// CreatedAt is the client-side event time. Zero means server time.
	CreatedAt time.Time

	// Attribution seeds the session on first sight and is ignored afterwards.
	Attribution domain.Attribution
}

// TrackEvent resolves or creates the session for the submission, marks
// completion when applicable, and appends the event. The session write always
// precedes the event write.
func (s *Service) TrackEvent(ctx context.Context, req TrackEventRequest) (*domain.Event, error) {
	if req.SessionToken == "" || req.QuizID == "" || req.EventType == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("session_id, quiz_id and event_type are required"))
	}

	at := req.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var completed bool

	ss, err := s.store.FindSession(ctx, req.QuizID, req.SessionToken)
	switch {
	case errors.IsCode(err, errors.CodeNotFound):
		if err := s.startSession(ctx, req, at); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("tracking: find session: %w", err)
	case req.EventType == domain.EventTypeQuizCompleted:
		if err := s.store.MarkCompleted(ctx, req.QuizID, req.SessionToken, at); err != nil {
			return nil, fmt.Errorf("tracking: mark completed: %w", err)
		}
		// Only the first completion notifies; completed_at never moves again.
		completed = ss.CompletedAt == nil
	}

	// Re-resolve to get the surrogate id, including after a lost create race.
	ss, err = s.store.FindSession(ctx, req.QuizID, req.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("tracking: resolve session after create: %w", err)
	}

	e := &domain.Event{
		EventID:        uuid.Must(uuid.NewV7()).String(),
		SessionID:      ss.SessionID,
		QuizID:         req.QuizID,
		EventType:      req.EventType,
		QuestionNumber: req.QuestionNumber,
		QuestionID:     req.QuestionID,
		Answer:         req.Answer,
		TimeSpent:      req.TimeSpent,
		CreatedAt:      at,
	}

	if err := s.store.AppendEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("tracking: append event: %w", err)
	}

	if completed {
		s.eb.Publish(ctx, domain.EventSessionCompleted{Session: *ss})
	}

	return e, nil
}

func (s *Service) startSession(ctx context.Context, req TrackEventRequest, at time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("tracking: generate session ID: %w", err)
	}

	// A concurrent first event may win the insert; both outcomes leave
	// exactly one row behind, which is all this step needs.
	_, err = s.store.CreateSession(ctx, &domain.Session{
		SessionID:    id.String(),
		QuizID:       req.QuizID,
		SessionToken: req.SessionToken,
		StartedAt:    at,
		Attribution:  req.Attribution,
	})
	if err != nil {
		return fmt.Errorf("tracking: create session: %w", err)
	}

	return nil
}

// FindSession exposes session resolution to the conversion path, which must
// not invent sessions of its own.
func (s *Service) FindSession(ctx context.Context, quizID, sessionToken string) (*domain.Session, error) {
	return s.store.FindSession(ctx, quizID, sessionToken)
}

// ListSessionEvents returns the ordered journey for a session. An unknown
// session yields an empty list, not an error.
func (s *Service) ListSessionEvents(ctx context.Context, sessionID string) ([]domain.Event, error) {
	return s.store.ListSessionEvents(ctx, sessionID)
}
