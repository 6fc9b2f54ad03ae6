package attempt

import (
	"sort"
	"strings"

	"knowledgecheckr/internal/models"
)

// scoreAttempt computes the deterministic score of a finished attempt: the
// sum of the point values of correctly answered questions, with the sum of
// all point values as the maximum.
func scoreAttempt(questions []models.Question, answers map[string]Submission) (score, maxScore int) {
	for i := range questions {
		q := &questions[i]
		maxScore += q.Points
		sub, ok := answers[q.ID]
		if !ok {
			continue
		}
		if isCorrect(q, sub) {
			score += q.Points
		}
	}
	return score, maxScore
}

func isCorrect(q *models.Question, sub Submission) bool {
	switch q.Type {
	case models.QuestionSingleChoice, models.QuestionMultipleChoice:
		return sameIDSet(correctAnswerIDs(q), sub.AnswerIDs)
	case models.QuestionDragDrop:
		return sameIDSequence(orderedAnswerIDs(q), sub.AnswerIDs)
	case models.QuestionOpen:
		return matchesOpenAnswer(q, sub.Text)
	default:
		return false
	}
}

func correctAnswerIDs(q *models.Question) []string {
	var ids []string
	for _, a := range q.Answers {
		if a.Correct {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// orderedAnswerIDs returns the answer ids in their target position order.
func orderedAnswerIDs(q *models.Question) []string {
	answers := make([]models.Answer, len(q.Answers))
	copy(answers, q.Answers)
	sort.SliceStable(answers, func(i, j int) bool {
		pi, pj := 0, 0
		if answers[i].Position != nil {
			pi = *answers[i].Position
		}
		if answers[j].Position != nil {
			pj = *answers[j].Position
		}
		return pi < pj
	})
	ids := make([]string, len(answers))
	for i, a := range answers {
		ids[i] = a.ID
	}
	return ids
}

func sameIDSet(want, got []string) bool {
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	set := make(map[string]bool, len(want))
	for _, id := range want {
		set[id] = true
	}
	for _, id := range got {
		if !set[id] {
			return false
		}
	}
	return true
}

func sameIDSequence(want, got []string) bool {
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// matchesOpenAnswer compares free text against the accepted answers,
// ignoring case and surrounding whitespace.
func matchesOpenAnswer(q *models.Question, text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	for _, a := range q.Answers {
		if a.Correct && strings.ToLower(strings.TrimSpace(a.Text)) == normalized {
			return true
		}
	}
	return false
}
