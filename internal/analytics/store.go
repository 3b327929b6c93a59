package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crivus/quizlead/internal/domain"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FunnelCounts(ctx context.Context, quizID string) (Counts, error) {
	const stmt = `
SELECT
	(SELECT COUNT(*) FROM sessions WHERE quiz_id = $1),
	(SELECT COUNT(*) FROM events WHERE quiz_id = $1 AND event_type = $2),
	(SELECT COUNT(*) FROM sessions WHERE quiz_id = $1 AND completed_at IS NOT NULL),
	(SELECT COUNT(*) FROM leads WHERE quiz_id = $1);`

	var c Counts
	err := s.db.QueryRow(ctx, stmt, quizID, domain.EventTypeQuizStarted).
		Scan(&c.Visits, &c.Starts, &c.Completions, &c.Leads)
	if err != nil {
		return Counts{}, fmt.Errorf("query funnel counts: %w", err)
	}

	return c, nil
}

func (s *PostgresStore) AbandonmentCounts(ctx context.Context, quizID string) ([]QuestionCounts, error) {
	const stmt = `
SELECT
	question_number,
	COUNT(*) FILTER (WHERE event_type = $2),
	COUNT(*) FILTER (WHERE event_type = $3),
	COALESCE(SUM(time_spent) FILTER (WHERE event_type = $2), 0),
	COUNT(time_spent) FILTER (WHERE event_type = $2)
FROM events
WHERE quiz_id = $1 AND event_type IN ($2, $3) AND question_number IS NOT NULL
GROUP BY question_number
ORDER BY question_number;`

	rows, err := s.db.Query(ctx, stmt, quizID,
		domain.EventTypeQuestionViewed, domain.EventTypeQuizAbandoned)
	if err != nil {
		return nil, fmt.Errorf("query abandonment counts: %w", err)
	}

	counts, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (QuestionCounts, error) {
		var c QuestionCounts
		err := r.Scan(&c.QuestionNumber, &c.Views, &c.Abandons, &c.TimeSpentTotal, &c.TimedViews)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect abandonment counts: %w", err)
	}

	return counts, nil
}
