package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgecheckr/internal/models"
)

func validDraft() map[string]interface{} {
	return map[string]interface{}{
		"name":       "Networking basics",
		"difficulty": "easy",
		"categories": []map[string]interface{}{
			{"name": "TCP"},
		},
		"questions": []map[string]interface{}{
			{
				"category": "TCP",
				"type":     "single-choice",
				"prompt":   "What does TCP stand for?",
				"answers": []map[string]interface{}{
					{"text": "Transmission Control Protocol", "correct": true},
					{"text": "Total Connection Plan"},
				},
			},
		},
	}
}

func parseDraft(t *testing.T, draft map[string]interface{}) (*models.KnowledgeCheck, error) {
	t.Helper()
	body, err := json.Marshal(draft)
	require.NoError(t, err)
	return SafeParse(body)
}

func fieldErrorsOf(t *testing.T, err error) []FieldError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	require.NotEmpty(t, verr.Errors)
	return verr.Errors
}

func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestSafeParseValidDraftAppliesDefaults(t *testing.T) {
	check, err := parseDraft(t, validDraft())
	require.NoError(t, err)

	assert.NotEmpty(t, check.ID)
	assert.NotEmpty(t, check.ShareKey)
	assert.Equal(t, models.OrderRandom, check.Settings.QuestionOrder)
	assert.Equal(t, models.OrderRandom, check.Settings.AnswerOrder)

	require.Len(t, check.Questions, 1)
	q := check.Questions[0]
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, check.ID, q.CheckID)
	assert.Equal(t, models.AccessAll, q.Accessibility)
	assert.Equal(t, 1, q.Points)
	for _, a := range q.Answers {
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, q.ID, a.QuestionID)
	}
}

func TestSafeParseEmptyBody(t *testing.T) {
	for _, body := range []string{"", "{}", "null", "   "} {
		_, err := SafeParse([]byte(body))
		errs := fieldErrorsOf(t, err)
		assert.Equal(t, "body", errs[0].Field)
		assert.Equal(t, "empty request body", errs[0].Message)
	}
}

func TestSafeParseEmptyName(t *testing.T) {
	draft := validDraft()
	draft["name"] = ""
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "name"), "errors: %v", errs)
}

func TestSafeParseBadEnum(t *testing.T) {
	draft := validDraft()
	draft["difficulty"] = "impossible"
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "difficulty"), "errors: %v", errs)
}

func TestSafeParseBadQuestionType(t *testing.T) {
	draft := validDraft()
	draft["questions"].([]map[string]interface{})[0]["type"] = "essay"
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "questions[0].type"), "errors: %v", errs)
}

func TestSafeParseMalformedDate(t *testing.T) {
	draft := validDraft()
	draft["open_date"] = "not-a-date"
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.Contains(t, errs[0].Message, "not-a-date")
}

func TestSafeParseAcceptsDateOnlyStrings(t *testing.T) {
	draft := validDraft()
	draft["open_date"] = "2026-01-10"
	draft["close_date"] = "2026-02-10T12:00:00Z"
	check, err := parseDraft(t, draft)
	require.NoError(t, err)
	assert.Equal(t, 2026, check.OpenDate.Year())
	assert.Equal(t, time.February, check.CloseDate.Month())
}

func TestSafeParseCloseBeforeOpen(t *testing.T) {
	draft := validDraft()
	draft["open_date"] = "2026-02-10"
	draft["close_date"] = "2026-01-10"
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "close_date"), "errors: %v", errs)
}

func TestSafeParseUnknownQuestionCategory(t *testing.T) {
	draft := validDraft()
	draft["questions"].([]map[string]interface{})[0]["category"] = "UDP"
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "questions[0].category"), "errors: %v", errs)
}

func TestSafeParseSelfPrerequisite(t *testing.T) {
	draft := validDraft()
	draft["categories"] = []map[string]interface{}{
		{"id": "11111111-1111-1111-1111-111111111111", "name": "TCP",
			"prerequisite_id": "11111111-1111-1111-1111-111111111111"},
	}
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "categories[0].prerequisite_id"), "errors: %v", errs)
}

func TestSafeParsePrerequisiteCycle(t *testing.T) {
	a := "11111111-1111-1111-1111-111111111111"
	b := "22222222-2222-2222-2222-222222222222"
	draft := validDraft()
	draft["categories"] = []map[string]interface{}{
		{"id": a, "name": "TCP", "prerequisite_id": b},
		{"id": b, "name": "IP", "prerequisite_id": a},
	}
	draft["questions"] = []map[string]interface{}{}
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.Contains(t, errs[0].Message, "cycle")
}

func TestSafeParsePrerequisiteDAGAllowed(t *testing.T) {
	a := "11111111-1111-1111-1111-111111111111"
	b := "22222222-2222-2222-2222-222222222222"
	draft := validDraft()
	draft["categories"] = []map[string]interface{}{
		{"id": a, "name": "TCP"},
		{"id": b, "name": "IP", "prerequisite_id": a},
	}
	_, err := parseDraft(t, draft)
	require.NoError(t, err)
}

func TestSafeParseDuplicateCategoryNames(t *testing.T) {
	draft := validDraft()
	draft["categories"] = []map[string]interface{}{
		{"name": "TCP"},
		{"name": "TCP"},
	}
	_, err := parseDraft(t, draft)
	errs := fieldErrorsOf(t, err)
	assert.True(t, hasFieldError(errs, "categories[1].name"), "errors: %v", errs)
}

func TestInstantiateRoundTrip(t *testing.T) {
	check := Instantiate("owner-1")
	body, err := json.Marshal(check)
	require.NoError(t, err)

	parsed, err := SafeParse(body)
	require.NoError(t, err)
	assert.Equal(t, check.ID, parsed.ID)
	assert.Equal(t, check.ShareKey, parsed.ShareKey)
	assert.Equal(t, check.Settings.QuestionOrder, parsed.Settings.QuestionOrder)
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	check := Instantiate("owner-1")
	before := *check
	ApplyDefaults(check)
	assert.Equal(t, before.ID, check.ID)
	assert.Equal(t, before.ShareKey, check.ShareKey)
	assert.Equal(t, before.Difficulty, check.Difficulty)
}
