package app

import (
	"context"
	"log"

	"timed-quiz-service/internal/domain"
)

// QuizService opens resumable sessions over a question source and a
// profile-scoped store.
type QuizService struct {
	questions QuestionSource
	stores    StoreProvider
	opts      []Option
}

func NewQuizService(questions QuestionSource, stores StoreProvider, opts ...Option) *QuizService {
	return &QuizService{questions: questions, stores: stores, opts: opts}
}

// Questions loads the question set, degrading to an empty set when the source
// is unreachable or its content is malformed.
func (s *QuizService) Questions(ctx context.Context) []domain.Question {
	set, err := s.questions.LoadQuestions(ctx)
	if err != nil {
		log.Printf("load questions: %v", err)
		return []domain.Question{}
	}
	if err := set.Validate(); err != nil {
		log.Printf("load questions: %v", err)
		return []domain.Question{}
	}
	return set.Quiz
}

// Open builds the machine for a profile, resuming any in-progress attempt.
// The caller must Close the machine when the tab goes away.
func (s *QuizService) Open(ctx context.Context, profileID string, gate FullscreenGate) *Machine {
	m := NewMachine(s.Questions(ctx), s.stores.ForProfile(profileID), gate, s.opts...)
	m.Resume(ctx)
	return m
}
