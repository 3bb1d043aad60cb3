package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"timed-quiz-service/internal/domain"
)

// QuestionSource reads a questions.json file of shape {"quiz": [...]}.
type QuestionSource struct {
	path string
}

func NewQuestionSource(path string) *QuestionSource {
	return &QuestionSource{path: path}
}

func (s *QuestionSource) LoadQuestions(_ context.Context) (domain.QuestionSet, error) {
	return ReadQuestionSet(s.path)
}

// ReadQuestionSet decodes the question set stored at path.
func ReadQuestionSet(path string) (domain.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.QuestionSet{}, fmt.Errorf("read %s: %w", path, domain.ErrQuestionSetNotFound)
	}
	if err != nil {
		return domain.QuestionSet{}, err
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedQuestionSet, path, err)
	}
	return set, nil
}
