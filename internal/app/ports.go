package app

import (
	"context"

	"timed-quiz-service/internal/domain"
)

// SessionStore is the key-value record kept for one browser profile.
// Values are stored as text; Get reports false for absent keys.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// StoreProvider scopes session stores to a browser profile (in-memory, Redis, SQL).
type StoreProvider interface {
	ForProfile(profileID string) SessionStore
}

// QuestionSource supplies the ordered question set.
type QuestionSource interface {
	LoadQuestions(ctx context.Context) (domain.QuestionSet, error)
}

// FullscreenGate is the browser full-screen capability.
//
// Request must not block; denial is reported through the returned error and
// never through a panic. OnChange listeners may be invoked synchronously from
// Request and must be safe to call from any goroutine.
type FullscreenGate interface {
	IsActive() bool
	Request() error
	OnChange(fn func(active bool)) (cancel func())
}
