package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"timed-quiz-service/internal/app"
)

type sessionValue struct {
	bun.BaseModel `bun:"table:session_values"`

	ProfileID string    `bun:"profile_id,pk"`
	Name      string    `bun:"name,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// ProfileStore keeps session records in the session_values table, one row per key.
type ProfileStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{db: db, now: time.Now}
}

func (p *ProfileStore) ForProfile(profileID string) app.SessionStore {
	return &SessionStore{db: p.db, now: p.now, profileID: profileID}
}

// SessionStore is the record of one profile.
type SessionStore struct {
	db        *bun.DB
	now       func() time.Time
	profileID string
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row sessionValue
	err := s.db.NewSelect().
		Model(&row).
		Where("profile_id = ?", s.profileID).
		Where("name = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	row := &sessionValue{ProfileID: s.profileID, Name: key, Value: value, UpdatedAt: s.now()}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (profile_id, name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *SessionStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*sessionValue)(nil)).
		Where("profile_id = ?", s.profileID).
		Where("name = ?", key).
		Exec(ctx)
	return err
}
