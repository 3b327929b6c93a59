package quiz

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const selectQuiz = `
SELECT quiz_id, user_id, title, url, tracking_code, created_at FROM quizzes`

func scanQuiz(row pgx.Row) (*domain.Quiz, error) {
	var q domain.Quiz
	err := row.Scan(&q.QuizID, &q.OwnerID, &q.Title, &q.URL, &q.TrackingCode, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *PostgresStore) InsertQuiz(ctx context.Context, q *domain.Quiz) error {
	const stmt = `
INSERT INTO quizzes (quiz_id, user_id, title, url, tracking_code, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := s.db.Exec(ctx, stmt, q.QuizID, q.OwnerID, q.Title, q.URL, q.TrackingCode, q.CreatedAt)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetOwner(ctx context.Context, quizID string) (string, error) {
	const stmt = `SELECT user_id FROM quizzes WHERE quiz_id = $1;`

	var owner string
	err := s.db.QueryRow(ctx, stmt, quizID).Scan(&owner)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz not found: %s", quizID))
	}
	if err != nil {
		return "", fmt.Errorf("query quiz owner: %w", err)
	}

	return owner, nil
}

func (s *PostgresStore) GetOwned(ctx context.Context, quizID, ownerID string) (*domain.Quiz, error) {
	q, err := scanQuiz(s.db.QueryRow(ctx, selectQuiz+` WHERE quiz_id = $1 AND user_id = $2;`, quizID, ownerID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz not found: %s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("query owned quiz: %w", err)
	}

	return q, nil
}

func (s *PostgresStore) GetByTrackingCode(ctx context.Context, code string) (*domain.Quiz, error) {
	q, err := scanQuiz(s.db.QueryRow(ctx, selectQuiz+` WHERE tracking_code = $1;`, code))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown tracking code"))
	}
	if err != nil {
		return nil, fmt.Errorf("query quiz by tracking code: %w", err)
	}

	return q, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	rows, err := s.db.Query(ctx, selectQuiz+` WHERE user_id = $1 ORDER BY created_at DESC;`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query owned quizzes: %w", err)
	}

	quizzes, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		q, err := scanQuiz(r)
		if err != nil {
			return domain.Quiz{}, err
		}
		return *q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect quizzes: %w", err)
	}

	return quizzes, nil
}

func (s *PostgresStore) UpdateQuiz(ctx context.Context, quizID, ownerID, title, url string) (*domain.Quiz, error) {
	const stmt = `
UPDATE quizzes SET title = $3, url = $4
WHERE quiz_id = $1 AND user_id = $2
RETURNING quiz_id, user_id, title, url, tracking_code, created_at;`

	q, err := scanQuiz(s.db.QueryRow(ctx, stmt, quizID, ownerID, title, url))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz not found: %s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}

	return q, nil
}

func (s *PostgresStore) DeleteQuiz(ctx context.Context, quizID, ownerID string) error {
	const stmt = `DELETE FROM quizzes WHERE quiz_id = $1 AND user_id = $2;`

	tag, err := s.db.Exec(ctx, stmt, quizID, ownerID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz not found: %s", quizID))
	}

	return nil
}
