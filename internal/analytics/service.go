// Package analytics derives the per-quiz conversion funnel and the
// per-question abandonment breakdown from the tracking tables. Read-only.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/crivus/quizlead/internal/auth"
	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
)

// Counts are the raw funnel tallies for one quiz.
type Counts struct {
	Visits      int64
	Starts      int64
	Completions int64
	Leads       int64
}

// QuestionCounts are the raw per-question tallies: how often a question was
// viewed, how often the quiz was abandoned on it, and the time_spent sum over
// the TimedViews views that reported one.
type QuestionCounts struct {
	QuestionNumber int
	Views          int64
	Abandons       int64
	TimeSpentTotal int64
	TimedViews     int64
}

type Store interface {
	FunnelCounts(ctx context.Context, quizID string) (Counts, error)
	AbandonmentCounts(ctx context.Context, quizID string) ([]QuestionCounts, error)
}

type QuizDirectory interface {
	FindOwned(ctx context.Context, quizID, ownerID string) (*domain.Quiz, error)
}

type Config struct {
	Store   Store
	Quizzes QuizDirectory
}

type Service struct {
	store   Store
	quizzes QuizDirectory
}

func NewService(c Config) *Service {
	return &Service{
		store:   c.Store,
		quizzes: c.Quizzes,
	}
}

// QuizAnalytics returns the funnel and the abandonment breakdown for one of
// the owner's quizzes. Unknown and foreign quiz ids both read as
// CodeNotFound.
func (s *Service) QuizAnalytics(ctx context.Context, quizID string) (*domain.QuizAnalytics, error) {
	owner, ok := auth.OwnerFrom(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated)
	}

	if _, err := s.quizzes.FindOwned(ctx, quizID, owner); err != nil {
		return nil, err
	}

	c, err := s.store.FunnelCounts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("analytics: funnel counts: %w", err)
	}

	qc, err := s.store.AbandonmentCounts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("analytics: abandonment counts: %w", err)
	}

	abandonment := abandonmentReport(qc)

	return &domain.QuizAnalytics{
		Funnel: domain.FunnelStats{
			TotalVisits:     c.Visits,
			QuizStarts:      c.Starts,
			QuizCompletions: c.Completions,
			TotalLeads:      c.Leads,
			QuizStartRate:   rate(c.Starts, c.Visits),
			CompletionRate:  rate(c.Completions, c.Starts),
			ConversionRate:  rate(c.Leads, c.Visits),
		},
		Abandonment:    abandonment,
		TopAbandonment: topAbandonment(abandonment),
	}, nil
}

// abandonmentReport derives the per-question drop-off stats, ordered by
// abandon rate with the worst question first. Question number breaks ties so
// the order is stable.
func abandonmentReport(counts []QuestionCounts) []domain.QuestionAbandonment {
	out := make([]domain.QuestionAbandonment, 0, len(counts))
	for _, c := range counts {
		out = append(out, domain.QuestionAbandonment{
			QuestionID:     fmt.Sprintf("Q%d", c.QuestionNumber),
			QuestionNumber: c.QuestionNumber,
			Views:          c.Views,
			Abandons:       c.Abandons,
			AbandonRate:    rate(c.Abandons, c.Views),
			AvgTime:        average(c.TimeSpentTotal, c.TimedViews),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AbandonRate != out[j].AbandonRate {
			return out[i].AbandonRate > out[j].AbandonRate
		}
		return out[i].QuestionNumber < out[j].QuestionNumber
	})

	return out
}

// topAbandonmentLimit caps the shortlist the owner dashboard highlights.
const topAbandonmentLimit = 3

func topAbandonment(abandonment []domain.QuestionAbandonment) []domain.TopAbandonment {
	top := make([]domain.TopAbandonment, 0, topAbandonmentLimit)
	for _, a := range abandonment {
		if len(top) == topAbandonmentLimit {
			break
		}

		top = append(top, domain.TopAbandonment{
			QuestionOrder: a.QuestionID,
			AbandonRate:   a.AbandonRate,
		})
	}

	return top
}

// rate returns part/whole as a percentage rounded to two places, 0 when the
// denominator is 0.
func rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}

	return decimal.NewFromInt(part).
		Div(decimal.NewFromInt(whole)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// average returns total/n rounded to two places, 0 when n is 0.
func average(total, n int64) float64 {
	if n == 0 {
		return 0
	}

	return decimal.NewFromInt(total).
		Div(decimal.NewFromInt(n)).
		Round(2).
		InexactFloat64()
}
