package tracking

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
)

// PostgresStore backs the pipeline with the sessions and events tables. The
// unique key on (quiz_id, session_token) is what makes concurrent first
// events for the same visitor converge on one session row.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindSession(ctx context.Context, quizID, sessionToken string) (*domain.Session, error) {
	const stmt = `
SELECT session_id, quiz_id, session_token, started_at, completed_at,
	COALESCE(device, ''), COALESCE(browser, ''), COALESCE(os, ''), COALESCE(referrer, ''),
	COALESCE(utm_source, ''), COALESCE(utm_medium, ''), COALESCE(utm_campaign, ''),
	COALESCE(utm_term, ''), COALESCE(utm_content, '')
FROM sessions
WHERE quiz_id = $1 AND session_token = $2;`

	var ss domain.Session
	err := s.db.QueryRow(ctx, stmt, quizID, sessionToken).Scan(
		&ss.SessionID, &ss.QuizID, &ss.SessionToken, &ss.StartedAt, &ss.CompletedAt,
		&ss.Attribution.Device, &ss.Attribution.Browser, &ss.Attribution.OS, &ss.Attribution.Referrer,
		&ss.Attribution.UTMSource, &ss.Attribution.UTMMedium, &ss.Attribution.UTMCampaign,
		&ss.Attribution.UTMTerm, &ss.Attribution.UTMContent,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session not found: quiz=%s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	return &ss, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, ss *domain.Session) (CreateOutcome, error) {
	const stmt = `
INSERT INTO sessions (session_id, quiz_id, session_token, started_at,
	device, browser, os, referrer,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (quiz_id, session_token) DO NOTHING;`

	a := ss.Attribution
	tag, err := s.db.Exec(ctx, stmt,
		ss.SessionID, ss.QuizID, ss.SessionToken, ss.StartedAt,
		textOrNil(a.Device), textOrNil(a.Browser), textOrNil(a.OS), textOrNil(a.Referrer),
		textOrNil(a.UTMSource), textOrNil(a.UTMMedium), textOrNil(a.UTMCampaign),
		textOrNil(a.UTMTerm), textOrNil(a.UTMContent),
	)
	if err != nil {
		return SessionCreated, fmt.Errorf("insert session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return SessionAlreadyExists, nil
	}

	return SessionCreated, nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, quizID, sessionToken string, at time.Time) error {
	// completed_at is write-once; the IS NULL guard makes repeats no-ops.
	const stmt = `
UPDATE sessions SET completed_at = $3
WHERE quiz_id = $1 AND session_token = $2 AND completed_at IS NULL;`

	if _, err := s.db.Exec(ctx, stmt, quizID, sessionToken, at); err != nil {
		return fmt.Errorf("mark session completed: %w", err)
	}

	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *domain.Event) error {
	const stmt = `
INSERT INTO events (event_id, session_id, quiz_id, event_type,
	question_number, question_id, answer, time_spent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := s.db.Exec(ctx, stmt,
		e.EventID, e.SessionID, e.QuizID, e.EventType,
		e.QuestionNumber, textOrNil(e.QuestionID), textOrNil(e.Answer), e.TimeSpent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListSessionEvents(ctx context.Context, sessionID string) ([]domain.Event, error) {
	// event_id is a UUIDv7, so it breaks created_at ties in insertion order.
	const stmt = `
SELECT event_id, session_id, quiz_id, event_type,
	question_number, COALESCE(question_id, ''), COALESCE(answer, ''), time_spent, created_at
FROM events
WHERE session_id = $1
ORDER BY created_at, event_id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Event, error) {
		var e domain.Event
		if err := r.Scan(
			&e.EventID, &e.SessionID, &e.QuizID, &e.EventType,
			&e.QuestionNumber, &e.QuestionID, &e.Answer, &e.TimeSpent, &e.CreatedAt,
		); err != nil {
			return domain.Event{}, err
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect events: %w", err)
	}

	return events, nil
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
