// Package lead captures conversions and reconstructs visitor journeys for
// quiz owners. A lead always attaches to a session that already tracked at
// least one event.
package lead

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crivus/quizlead/internal/auth"
	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
	"github.com/crivus/quizlead/internal/event"
)

type Store interface {
	CreateLead(ctx context.Context, l *domain.Lead) error
	// GetLead returns CodeNotFound when no lead matches.
	GetLead(ctx context.Context, leadID string) (*domain.Lead, error)
	// ListQuizLeads returns leads newest first.
	ListQuizLeads(ctx context.Context, quizID string) ([]domain.Lead, error)
}

// SessionResolver is the track-before-convert gate: a conversion may only
// reference a session the pipeline has already seen.
type SessionResolver interface {
	FindSession(ctx context.Context, quizID, sessionToken string) (*domain.Session, error)
}

type EventLister interface {
	ListSessionEvents(ctx context.Context, sessionID string) ([]domain.Event, error)
}

// QuizDirectory answers ownership questions for the authorization checks.
type QuizDirectory interface {
	// OwnerOf returns CodeNotFound for an unknown quiz.
	OwnerOf(ctx context.Context, quizID string) (string, error)
	// FindOwned returns CodeNotFound when the quiz does not exist or does
	// not belong to the owner; the two cases are deliberately merged.
	FindOwned(ctx context.Context, quizID, ownerID string) (*domain.Quiz, error)
}

type Config struct {
	Store    Store
	Sessions SessionResolver
	Events   EventLister
	Quizzes  QuizDirectory
	EventBus *event.Bus
}

type Service struct {
	store    Store
	sessions SessionResolver
	events   EventLister
	quizzes  QuizDirectory
	eb       *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store:    c.Store,
		sessions: c.Sessions,
		events:   c.Events,
		quizzes:  c.Quizzes,
		eb:       c.EventBus,
	}
}

type SubmitLeadRequest struct {
	SessionToken string
	QuizID       string
	Name         string
	Email        string
	Phone        string
	QuizResult   string
}

// SubmitLead attributes a conversion to an existing session. A token that has
// never produced an event yields CodeNotFound.
func (s *Service) SubmitLead(ctx context.Context, req SubmitLeadRequest) (*domain.Lead, error) {
	if req.SessionToken == "" || req.QuizID == "" || req.Name == "" || req.Email == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("session_id, quiz_id, name and email are required"))
	}

	ss, err := s.sessions.FindSession(ctx, req.QuizID, req.SessionToken)
	if errors.IsCode(err, errors.CodeNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session not found: quiz=%s", req.QuizID))
	}
	if err != nil {
		return nil, fmt.Errorf("lead: resolve session: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("lead: generate lead ID: %w", err)
	}

	l := &domain.Lead{
		LeadID:     id.String(),
		SessionID:  ss.SessionID,
		QuizID:     req.QuizID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		QuizResult: req.QuizResult,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateLead(ctx, l); err != nil {
		return nil, fmt.Errorf("lead: create: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeadCreated{Lead: *l})

	return l, nil
}

// Journey is a lead together with the ordered event history of its session.
type Journey struct {
	Lead    domain.Lead
	Entries []domain.JourneyEntry
}

// GetJourney returns the lead's core fields plus its session's events in
// chronological order. The caller must be the owner of the lead's quiz:
// existence is confirmed first (404), ownership second (403).
func (s *Service) GetJourney(ctx context.Context, leadID string) (*Journey, error) {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated)
	}

	l, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	quizOwner, err := s.quizzes.OwnerOf(ctx, l.QuizID)
	if err != nil {
		return nil, fmt.Errorf("lead: resolve quiz owner: %w", err)
	}
	if quizOwner != owner {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("lead %s does not belong to the requesting owner", leadID))
	}

	events, err := s.events.ListSessionEvents(ctx, l.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lead: list session events: %w", err)
	}

	entries := make([]domain.JourneyEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, domain.JourneyEntry{
			Type:      e.EventType,
			Question:  e.QuestionID,
			Order:     e.QuestionNumber,
			Answer:    e.Answer,
			TimeSpent: e.TimeSpent,
			Timestamp: e.CreatedAt,
		})
	}

	return &Journey{Lead: *l, Entries: entries}, nil
}

// ListLeads returns the owner's leads for a quiz, newest first. An unknown or
// foreign quiz id is reported as CodeNotFound.
func (s *Service) ListLeads(ctx context.Context, quizID string) ([]domain.Lead, error) {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated)
	}

	if _, err := s.quizzes.FindOwned(ctx, quizID, owner); err != nil {
		return nil, err
	}

	leads, err := s.store.ListQuizLeads(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("lead: list by quiz: %w", err)
	}

	return leads, nil
}
