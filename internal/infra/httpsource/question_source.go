package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"timed-quiz-service/internal/domain"
)

// QuestionSource fetches the question set from a remote endpoint.
type QuestionSource struct {
	url    string
	client *http.Client
}

func NewQuestionSource(url string, timeout time.Duration) *QuestionSource {
	return &QuestionSource{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *QuestionSource) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.QuestionSet{}, fmt.Errorf("fetch questions: %w", domain.ErrQuestionSetNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.QuestionSet{}, fmt.Errorf("fetch questions: status %d: %s", resp.StatusCode, body)
	}

	var set domain.QuestionSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("%w: %v", domain.ErrMalformedQuestionSet, err)
	}
	return set, nil
}
