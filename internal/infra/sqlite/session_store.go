package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // registers "sqlite"

	"timed-quiz-service/internal/app"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

const schema = `
CREATE TABLE IF NOT EXISTS session_values (
    profile_id TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (profile_id, name)
)`

// Open opens the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Printf("sqlite session store ready path=%s", path)
	return db, nil
}

// ProfileStore keeps session records in a local SQLite file, one row per key.
type ProfileStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db, now: time.Now}
}

func (p *ProfileStore) ForProfile(profileID string) app.SessionStore {
	return &SessionStore{db: p.db, now: p.now, profileID: profileID}
}

// SessionStore is the record of one profile.
type SessionStore struct {
	db        *sql.DB
	now       func() time.Time
	profileID string
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := sqlBuilder.Select("value").
		From("session_values").
		Where(squirrel.Eq{"profile_id": s.profileID, "name": key}).
		ToSql()
	if err != nil {
		return "", false, err
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	query, args, err := sqlBuilder.Insert("session_values").
		Columns("profile_id", "name", "value", "updated_at").
		Values(s.profileID, key, value, s.now().UTC()).
		Suffix("ON CONFLICT(profile_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SessionStore) Remove(ctx context.Context, key string) error {
	query, args, err := sqlBuilder.Delete("session_values").
		Where(squirrel.Eq{"profile_id": s.profileID, "name": key}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}
