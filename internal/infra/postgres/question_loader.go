package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader loads a question set stored as JSONB in Postgres.
type QuestionLoader struct {
	pool  *pgxpool.Pool
	setID string
}

func NewQuestionLoader(pool *pgxpool.Pool, setID string) *QuestionLoader {
	return &QuestionLoader{pool: pool, setID: setID}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE id=$1`, l.setID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, fmt.Errorf("load question set %s: %w", l.setID, domain.ErrQuestionSetNotFound)
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set %s: %w", l.setID, err)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal question set %s: %w", l.setID, err)
	}
	return set, nil
}
