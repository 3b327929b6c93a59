package analytics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crivus/quizlead/internal/analytics"
	"github.com/crivus/quizlead/internal/auth"
	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
)

func TestService_QuizAnalytics_Funnel(t *testing.T) {
	tests := map[string]struct {
		counts analytics.Counts
		want   domain.FunnelStats
	}{
		"empty quiz": {
			counts: analytics.Counts{},
			want:   domain.FunnelStats{},
		},

		"no starts yet": {
			counts: analytics.Counts{Visits: 4},
			want:   domain.FunnelStats{TotalVisits: 4},
		},

		"round numbers": {
			counts: analytics.Counts{Visits: 10, Starts: 5, Completions: 4, Leads: 2},
			want: domain.FunnelStats{
				TotalVisits: 10, QuizStarts: 5, QuizCompletions: 4, TotalLeads: 2,
				QuizStartRate: 50, CompletionRate: 80, ConversionRate: 20,
			},
		},

		"rates round to two places": {
			counts: analytics.Counts{Visits: 3, Starts: 1, Completions: 1, Leads: 2},
			want: domain.FunnelStats{
				TotalVisits: 3, QuizStarts: 1, QuizCompletions: 1, TotalLeads: 2,
				QuizStartRate: 33.33, CompletionRate: 100, ConversionRate: 66.67,
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			s := analytics.NewService(analytics.Config{
				Store:   fakeStore{counts: tt.counts},
				Quizzes: fakeQuizzes{owner: "owner-1"},
			})

			ctx := auth.WithOwner(context.Background(), "owner-1")
			got, err := s.QuizAnalytics(ctx, "q1")
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Funnel)
			require.Empty(t, got.Abandonment)
			require.Empty(t, got.TopAbandonment)
		})
	}
}

func TestService_QuizAnalytics_Abandonment(t *testing.T) {
	s := analytics.NewService(analytics.Config{
		Store: fakeStore{
			questions: []analytics.QuestionCounts{
				{QuestionNumber: 1, Views: 100, Abandons: 5},
				{QuestionNumber: 2, Views: 40, Abandons: 10},
				{QuestionNumber: 3, Views: 10, Abandons: 5, TimeSpentTotal: 95, TimedViews: 9},
				{QuestionNumber: 4, Views: 8, Abandons: 2},
			},
		},
		Quizzes: fakeQuizzes{owner: "owner-1"},
	})

	ctx := auth.WithOwner(context.Background(), "owner-1")
	got, err := s.QuizAnalytics(ctx, "q1")
	require.NoError(t, err)

	// Worst question first, question number breaking ties.
	require.Equal(t, []domain.QuestionAbandonment{
		{QuestionID: "Q3", QuestionNumber: 3, Views: 10, Abandons: 5, AbandonRate: 50, AvgTime: 10.56},
		{QuestionID: "Q2", QuestionNumber: 2, Views: 40, Abandons: 10, AbandonRate: 25},
		{QuestionID: "Q4", QuestionNumber: 4, Views: 8, Abandons: 2, AbandonRate: 25},
		{QuestionID: "Q1", QuestionNumber: 1, Views: 100, Abandons: 5, AbandonRate: 5},
	}, got.Abandonment)

	// The shortlist caps at three.
	require.Equal(t, []domain.TopAbandonment{
		{QuestionOrder: "Q3", AbandonRate: 50},
		{QuestionOrder: "Q2", AbandonRate: 25},
		{QuestionOrder: "Q4", AbandonRate: 25},
	}, got.TopAbandonment)
}

func TestService_QuizAnalytics_AbandonmentEdgeCases(t *testing.T) {
	s := analytics.NewService(analytics.Config{
		Store: fakeStore{
			questions: []analytics.QuestionCounts{
				// Abandons recorded before any view must not divide by zero.
				{QuestionNumber: 1, Views: 0, Abandons: 2},
				{QuestionNumber: 2, Views: 6, Abandons: 0},
			},
		},
		Quizzes: fakeQuizzes{owner: "owner-1"},
	})

	ctx := auth.WithOwner(context.Background(), "owner-1")
	got, err := s.QuizAnalytics(ctx, "q1")
	require.NoError(t, err)

	require.Equal(t, []domain.QuestionAbandonment{
		{QuestionID: "Q1", QuestionNumber: 1, Abandons: 2},
		{QuestionID: "Q2", QuestionNumber: 2, Views: 6},
	}, got.Abandonment)
	require.Len(t, got.TopAbandonment, 2)
}

func TestService_QuizAnalytics_Authorization(t *testing.T) {
	s := analytics.NewService(analytics.Config{
		Store:   fakeStore{},
		Quizzes: fakeQuizzes{owner: "owner-1"},
	})

	_, err := s.QuizAnalytics(context.Background(), "q1")
	require.True(t, errors.IsCode(err, errors.CodeUnauthenticated))

	ctx := auth.WithOwner(context.Background(), "owner-2")
	_, err = s.QuizAnalytics(ctx, "q1")
	require.True(t, errors.IsCode(err, errors.CodeNotFound), "foreign quiz reads as absent")
}

type fakeStore struct {
	counts    analytics.Counts
	questions []analytics.QuestionCounts
}

func (f fakeStore) FunnelCounts(context.Context, string) (analytics.Counts, error) {
	return f.counts, nil
}

func (f fakeStore) AbandonmentCounts(context.Context, string) ([]analytics.QuestionCounts, error) {
	return f.questions, nil
}

type fakeQuizzes struct {
	owner string
}

func (f fakeQuizzes) FindOwned(_ context.Context, quizID, ownerID string) (*domain.Quiz, error) {
	if ownerID != f.owner {
		return nil, errors.New(errors.CodeNotFound)
	}
	return &domain.Quiz{QuizID: quizID, OwnerID: ownerID}, nil
}
