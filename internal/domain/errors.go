package domain

import "errors"

var (
	// ErrNoQuestions is returned when a session is started without any loaded questions.
	ErrNoQuestions = errors.New("no questions loaded")
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrQuestionSetNotFound indicates the question set could not be located.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrMalformedQuestionSet indicates the question set failed validation.
	ErrMalformedQuestionSet = errors.New("malformed question set")
	// ErrSessionClosed is returned for operations on a torn down session.
	ErrSessionClosed = errors.New("session closed")
)
