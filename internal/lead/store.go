package lead

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crivus/quizlead/internal/domain"
	"github.com/crivus/quizlead/internal/errors"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateLead(ctx context.Context, l *domain.Lead) error {
	const stmt = `
INSERT INTO leads (lead_id, session_id, quiz_id, name, email, phone, quiz_result, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := s.db.Exec(ctx, stmt,
		l.LeadID, l.SessionID, l.QuizID, l.Name, l.Email,
		textOrNil(l.Phone), textOrNil(l.QuizResult), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	const stmt = `
SELECT lead_id, session_id, quiz_id, name, email,
	COALESCE(phone, ''), COALESCE(quiz_result, ''), created_at
FROM leads
WHERE lead_id = $1;`

	var l domain.Lead
	err := s.db.QueryRow(ctx, stmt, leadID).Scan(
		&l.LeadID, &l.SessionID, &l.QuizID, &l.Name, &l.Email,
		&l.Phone, &l.QuizResult, &l.CreatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("lead not found: %s", leadID))
	}
	if err != nil {
		return nil, fmt.Errorf("query lead: %w", err)
	}

	return &l, nil
}

func (s *PostgresStore) ListQuizLeads(ctx context.Context, quizID string) ([]domain.Lead, error) {
	const stmt = `
SELECT lead_id, session_id, quiz_id, name, email,
	COALESCE(phone, ''), COALESCE(quiz_result, ''), created_at
FROM leads
WHERE quiz_id = $1
ORDER BY created_at DESC;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}

	leads, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Lead, error) {
		var l domain.Lead
		if err := r.Scan(
			&l.LeadID, &l.SessionID, &l.QuizID, &l.Name, &l.Email,
			&l.Phone, &l.QuizResult, &l.CreatedAt,
		); err != nil {
			return domain.Lead{}, err
		}
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect leads: %w", err)
	}

	return leads, nil
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
