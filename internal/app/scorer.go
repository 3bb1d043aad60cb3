package app

import "timed-quiz-service/internal/domain"

// Score counts the questions whose selection is set-equal to the correct answers.
// Partial matches score zero. Missing selections count as empty.
func Score(questions []domain.Question, selections []domain.AnswerSet) int {
	score := 0
	for i, q := range questions {
		selected := domain.AnswerSet{}
		if i < len(selections) && selections[i] != nil {
			selected = selections[i]
		}
		if selected.Equal(q.CorrectAnswers()) {
			score++
		}
	}
	return score
}
