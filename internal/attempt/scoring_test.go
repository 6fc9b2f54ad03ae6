package attempt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"knowledgecheckr/internal/models"
)

func intPtr(i int) *int { return &i }

func choiceQuestion(id string, points int, qtype string) models.Question {
	return models.Question{
		ID:     id,
		Type:   qtype,
		Prompt: "q",
		Points: points,
		Answers: []models.Answer{
			{ID: id + "-a", Text: "right", Correct: true},
			{ID: id + "-b", Text: "also right", Correct: qtype == models.QuestionMultipleChoice},
			{ID: id + "-c", Text: "wrong"},
		},
	}
}

func TestScoreSingleChoice(t *testing.T) {
	q := choiceQuestion("q1", 3, models.QuestionSingleChoice)

	score, max := scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-a"}},
	})
	assert.Equal(t, 3, score)
	assert.Equal(t, 3, max)

	score, _ = scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-c"}},
	})
	assert.Equal(t, 0, score)
}

func TestScoreMultipleChoiceRequiresExactSet(t *testing.T) {
	q := choiceQuestion("q1", 2, models.QuestionMultipleChoice)

	full := map[string]Submission{"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-b", "q1-a"}}}
	score, _ := scoreAttempt([]models.Question{q}, full)
	assert.Equal(t, 2, score, "order within the set must not matter")

	partial := map[string]Submission{"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-a"}}}
	score, _ = scoreAttempt([]models.Question{q}, partial)
	assert.Equal(t, 0, score)

	extra := map[string]Submission{"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-a", "q1-b", "q1-c"}}}
	score, _ = scoreAttempt([]models.Question{q}, extra)
	assert.Equal(t, 0, score)
}

func TestScoreDragDropUsesPositionOrder(t *testing.T) {
	q := models.Question{
		ID:     "q1",
		Type:   models.QuestionDragDrop,
		Points: 4,
		Answers: []models.Answer{
			{ID: "s2", Text: "second", Position: intPtr(2)},
			{ID: "s1", Text: "first", Position: intPtr(1)},
			{ID: "s3", Text: "third", Position: intPtr(3)},
		},
	}

	score, _ := scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", AnswerIDs: []string{"s1", "s2", "s3"}},
	})
	assert.Equal(t, 4, score)

	score, _ = scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", AnswerIDs: []string{"s3", "s2", "s1"}},
	})
	assert.Equal(t, 0, score)
}

func TestScoreOpenQuestionNormalizesText(t *testing.T) {
	q := models.Question{
		ID:     "q1",
		Type:   models.QuestionOpen,
		Points: 2,
		Answers: []models.Answer{
			{ID: "a1", Text: "Dijkstra", Correct: true},
		},
	}

	score, _ := scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", Text: "  dijkstra "},
	})
	assert.Equal(t, 2, score)

	score, _ = scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", Text: "Dykstra"},
	})
	assert.Equal(t, 0, score)

	score, _ = scoreAttempt([]models.Question{q}, map[string]Submission{
		"q1": {QuestionID: "q1", Text: "   "},
	})
	assert.Equal(t, 0, score)
}

func TestScoreUnansweredQuestionsCountZero(t *testing.T) {
	questions := []models.Question{
		choiceQuestion("q1", 3, models.QuestionSingleChoice),
		choiceQuestion("q2", 5, models.QuestionSingleChoice),
	}

	score, max := scoreAttempt(questions, map[string]Submission{
		"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-a"}},
	})
	assert.Equal(t, 3, score)
	assert.Equal(t, 8, max)
}

func TestScoreIsDeterministic(t *testing.T) {
	questions := []models.Question{
		choiceQuestion("q1", 3, models.QuestionSingleChoice),
		choiceQuestion("q2", 5, models.QuestionMultipleChoice),
	}
	answers := map[string]Submission{
		"q1": {QuestionID: "q1", AnswerIDs: []string{"q1-a"}},
		"q2": {QuestionID: "q2", AnswerIDs: []string{"q2-a", "q2-b"}},
	}

	first, _ := scoreAttempt(questions, answers)
	for i := 0; i < 10; i++ {
		again, _ := scoreAttempt(questions, answers)
		assert.Equal(t, first, again)
	}
}

func TestSessionNavigationClamps(t *testing.T) {
	s := &Session{
		Questions: []models.Question{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Answers:   map[string]Submission{},
	}

	assert.Equal(t, 0, s.Previous(), "previous at the first question stays put")
	assert.Equal(t, 1, s.Next())
	assert.Equal(t, 2, s.Next())
	assert.Equal(t, 2, s.Next(), "next at the last question stays put")
	assert.Equal(t, 1, s.Previous())

	assert.Equal(t, "b", s.Current().ID)
}

func TestSessionSnapshotDuringNavigation(t *testing.T) {
	s := &Session{
		ID:        "s1",
		Questions: []models.Question{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Answers:   map[string]Submission{},
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Next()
				s.Previous()
			}
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				snap := s.Snapshot()
				assert.GreaterOrEqual(t, snap.Index, 0)
				assert.Less(t, snap.Index, snap.Total)
				if assert.NotNil(t, snap.Question) {
					assert.Equal(t, s.Questions[snap.Index].ID, snap.Question.ID)
				}
			}
		}()
	}
	wg.Wait()
}
