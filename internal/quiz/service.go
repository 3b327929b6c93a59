// Package quiz manages quiz registrations and answers the ownership
// questions the lead and analytics readers depend on.
package quiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crivus/quizlead/internal/auth"
	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
)

// Store is the quiz directory persistence contract. GetOwned, UpdateQuiz and
// DeleteQuiz treat foreign ownership the same as absence, so callers cannot
// distinguish the two.
type Store interface {
	InsertQuiz(ctx context.Context, q *domain.Quiz) error
	GetOwner(ctx context.Context, quizID string) (string, error)
	GetOwned(ctx context.Context, quizID, ownerID string) (*domain.Quiz, error)
	GetByTrackingCode(ctx context.Context, code string) (*domain.Quiz, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quizID, ownerID, title, url string) (*domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID, ownerID string) error
}

type Config struct {
	Store Store
}

type Service struct {
	store Store
}

func NewService(c Config) *Service {
	return &Service{store: c.Store}
}

type RegisterRequest struct {
	Title string
	URL   string
}

// Register creates a quiz for the authenticated owner and issues its opaque
// tracking code, which the embed script uses to address the quiz.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Quiz, error) {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated)
	}

	if req.Title == "" || req.URL == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("title and url are required"))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("quiz: generate quiz ID: %w", err)
	}

	q := &domain.Quiz{
		QuizID:       id.String(),
		OwnerID:      owner,
		Title:        req.Title,
		URL:          req.URL,
		TrackingCode: newTrackingCode(),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.InsertQuiz(ctx, q); err != nil {
		return nil, err
	}

	return q, nil
}

// newTrackingCode returns 32 hex chars, the shape the embed script expects.
func newTrackingCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// OwnerOf resolves the owner of a quiz, CodeNotFound when the quiz is
// unknown.
func (s *Service) OwnerOf(ctx context.Context, quizID string) (string, error) {
	return s.store.GetOwner(ctx, quizID)
}

// FindOwned fetches a quiz only when it belongs to the given owner. Absence
// and foreign ownership both come back as CodeNotFound so probing ids reveals
// nothing.
func (s *Service) FindOwned(ctx context.Context, quizID, ownerID string) (*domain.Quiz, error) {
	return s.store.GetOwned(ctx, quizID, ownerID)
}

// FindByTrackingCode resolves an embed tracking code to its quiz.
func (s *Service) FindByTrackingCode(ctx context.Context, code string) (*domain.Quiz, error) {
	return s.store.GetByTrackingCode(ctx, code)
}

// ListOwned returns the owner's quizzes, newest first.
func (s *Service) ListOwned(ctx context.Context) ([]domain.Quiz, error) {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated)
	}

	return s.store.ListByOwner(ctx, owner)
}

type UpdateRequest struct {
	QuizID string
	Title  string
	URL    string
}

// Update changes a quiz's title and URL, owner-checked.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*domain.Quiz, error) {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated)
	}

	if req.Title == "" || req.URL == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("title and url are required"))
	}

	return s.store.UpdateQuiz(ctx, req.QuizID, owner, req.Title, req.URL)
}

// Delete removes a quiz, owner-checked. Tracked sessions, events and leads
// stay behind; only this service's rows are owner-managed.
func (s *Service) Delete(ctx context.Context, quizID string) error {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return errors.New(errors.CodeUnauthenticated)
	}

	return s.store.DeleteQuiz(ctx, quizID, owner)
}
