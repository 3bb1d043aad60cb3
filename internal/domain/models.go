package domain

import (
	"fmt"
	"time"
)

// Question is a multi-select question. Immutable once loaded.
type Question struct {
	Text    string   `json:"question"`
	Choices []string `json:"choices"`
	Answers []string `json:"answers"`
}

// HasChoice reports whether choice is one of the question's choices.
func (q Question) HasChoice(choice string) bool {
	for _, c := range q.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// CorrectAnswers returns the correct answers as a set.
func (q Question) CorrectAnswers() AnswerSet {
	return NewAnswerSet(q.Answers...)
}

// QuestionSet is the wire shape served by a question source.
type QuestionSet struct {
	Quiz []Question `json:"quiz"`
}

// Validate checks that choices are unique and answers are a subset of the choices.
func (s QuestionSet) Validate() error {
	for i, q := range s.Quiz {
		seen := make(map[string]struct{}, len(q.Choices))
		for _, c := range q.Choices {
			if _, dup := seen[c]; dup {
				return fmt.Errorf("%w: question %d has duplicate choice %q", ErrMalformedQuestionSet, i, c)
			}
			seen[c] = struct{}{}
		}
		for _, a := range q.Answers {
			if _, ok := seen[a]; !ok {
				return fmt.Errorf("%w: question %d answer %q is not a choice", ErrMalformedQuestionSet, i, a)
			}
		}
	}
	return nil
}

// State is the lifecycle position of a quiz session.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger identifies what completed a session.
type Trigger string

const (
	TriggerSubmit  Trigger = "submit"
	TriggerTimeout Trigger = "timeout"
)

// Snapshot is the observable state of a session at one point in time.
type Snapshot struct {
	State            State      `json:"state"`
	CurrentIndex     int        `json:"currentIndex"`
	QuestionCount    int        `json:"questionCount"`
	RemainingSeconds int        `json:"remainingSeconds"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	Selections       [][]string `json:"selections"`
	Score            *int       `json:"score,omitempty"`
	CompletedBy      Trigger    `json:"completedBy,omitempty"`
	FullscreenActive bool       `json:"fullscreenActive"`
	// Gated is set while a session is in progress but full screen is not active.
	Gated        bool      `json:"gated"`
	ConfirmLeave bool      `json:"confirmLeave"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clock formats the remaining time as m:ss.
func (s Snapshot) Clock() string {
	return fmt.Sprintf("%d:%02d", s.RemainingSeconds/60, s.RemainingSeconds%60)
}

// LowTime reports whether less than a minute remains.
func (s Snapshot) LowTime() bool {
	return s.State == InProgress && s.RemainingSeconds < 60
}
