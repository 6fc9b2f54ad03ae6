package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"knowledgecheckr/internal/models"
)

// FieldError names one offending field of a rejected draft.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is the failure side of SafeParse: a non-empty list of
// field-level errors.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid knowledge check: " + strings.Join(parts, "; ")
}

var validate = validator.New()

// Instantiate produces a default-valued check for a fresh authoring draft.
func Instantiate(ownerID string) *models.KnowledgeCheck {
	check := &models.KnowledgeCheck{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		ShareKey: uuid.NewString(),
		Name:     "Untitled check",
	}
	ApplyDefaults(check)
	return check
}

// ApplyDefaults fills omitted identifiers and enumerated fields with their
// documented defaults. Idempotent: defaulted output passes through unchanged.
func ApplyDefaults(check *models.KnowledgeCheck) {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if check.ShareKey == "" {
		check.ShareKey = uuid.NewString()
	}
	if check.Difficulty == "" {
		check.Difficulty = models.DifficultyMedium
	}
	if check.Settings.CheckID == "" {
		check.Settings.CheckID = check.ID
	}
	if check.Settings.QuestionOrder == "" {
		check.Settings.QuestionOrder = models.OrderRandom
	}
	if check.Settings.AnswerOrder == "" {
		check.Settings.AnswerOrder = models.OrderRandom
	}
	for i := range check.Categories {
		cat := &check.Categories[i]
		if cat.ID == "" {
			cat.ID = uuid.NewString()
		}
		if cat.CheckID == "" {
			cat.CheckID = check.ID
		}
	}
	for i := range check.Questions {
		q := &check.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.CheckID == "" {
			q.CheckID = check.ID
		}
		if q.Accessibility == "" {
			q.Accessibility = models.AccessAll
		}
		if q.Points == 0 {
			q.Points = 1
		}
		for j := range q.Answers {
			a := &q.Answers[j]
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if a.QuestionID == "" {
				a.QuestionID = q.ID
			}
		}
	}
	for i := range check.Collaborators {
		col := &check.Collaborators[i]
		if col.ID == "" {
			col.ID = uuid.NewString()
		}
		if col.CheckID == "" {
			col.CheckID = check.ID
		}
	}
}

// Validate checks a defaulted draft against the schema and its refinement
// rules, returning a *ValidationError listing every violation.
func Validate(check *models.KnowledgeCheck) error {
	var errs []FieldError

	if err := validate.Struct(check); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, ve := range verrs {
			errs = append(errs, FieldError{
				Field:   fieldPath(ve.Namespace()),
				Message: tagMessage(ve),
			})
		}
	}

	errs = append(errs, refine(check)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// SafeParse decodes an untrusted JSON body into a fully-typed, defaulted
// check, or reports structured field errors. It never panics on malformed
// input.
func SafeParse(data []byte) (*models.KnowledgeCheck, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return nil, &ValidationError{Errors: []FieldError{
			{Field: "body", Message: "empty request body"},
		}}
	}

	var check models.KnowledgeCheck
	if err := json.Unmarshal(data, &check); err != nil {
		return nil, &ValidationError{Errors: []FieldError{decodeError(err)}}
	}

	ApplyDefaults(&check)
	if err := Validate(&check); err != nil {
		return nil, err
	}
	return &check, nil
}

// refine applies the cross-field rules the tag validator cannot express.
func refine(check *models.KnowledgeCheck) []FieldError {
	var errs []FieldError

	if check.OpenDate != nil && check.CloseDate != nil && check.CloseDate.Before(check.OpenDate.Time) {
		errs = append(errs, FieldError{
			Field:   "close_date",
			Message: "close date must not be before open date",
		})
	}

	byID := make(map[string]*models.Category, len(check.Categories))
	seenNames := make(map[string]bool, len(check.Categories))
	for i := range check.Categories {
		cat := &check.Categories[i]
		byID[cat.ID] = cat
		if seenNames[cat.Name] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("categories[%d].name", i),
				Message: fmt.Sprintf("duplicate category name %q", cat.Name),
			})
		}
		seenNames[cat.Name] = true
	}

	for i := range check.Categories {
		cat := &check.Categories[i]
		if cat.PrerequisiteID == nil {
			continue
		}
		field := fmt.Sprintf("categories[%d].prerequisite_id", i)
		if *cat.PrerequisiteID == cat.ID {
			errs = append(errs, FieldError{Field: field, Message: "category cannot be its own prerequisite"})
			continue
		}
		if _, ok := byID[*cat.PrerequisiteID]; !ok {
			errs = append(errs, FieldError{Field: field, Message: "prerequisite references an unknown category"})
			continue
		}
		if hasPrerequisiteCycle(cat, byID) {
			errs = append(errs, FieldError{Field: field, Message: "prerequisite chain forms a cycle"})
		}
	}

	for i := range check.Questions {
		q := &check.Questions[i]
		if q.Category == "" && q.CategoryID != "" {
			continue // already resolved by a previous save
		}
		if check.CategoryByName(q.Category) == nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("questions[%d].category", i),
				Message: fmt.Sprintf("category %q does not exist on this check", q.Category),
			})
		}
	}

	return errs
}

// hasPrerequisiteCycle walks the parent pointers from cat; the prerequisite
// references must form a DAG.
func hasPrerequisiteCycle(cat *models.Category, byID map[string]*models.Category) bool {
	seen := map[string]bool{cat.ID: true}
	cur := cat
	for cur.PrerequisiteID != nil {
		next, ok := byID[*cur.PrerequisiteID]
		if !ok {
			return false
		}
		if seen[next.ID] {
			return true
		}
		seen[next.ID] = true
		cur = next
	}
	return false
}

// fieldPath rewrites a validator namespace like
// "KnowledgeCheck.Questions[0].Type" into "questions[0].type".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		idx := ""
		if open := strings.Index(p, "["); open >= 0 {
			idx = p[open:]
			p = p[:open]
		}
		parts[i] = toSnake(p) + idx
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tagMessage(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		if ve.Kind() == reflect.String {
			return "must not be empty"
		}
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

func decodeError(err error) FieldError {
	if ute, ok := err.(*json.UnmarshalTypeError); ok && ute.Field != "" {
		return FieldError{Field: ute.Field, Message: fmt.Sprintf("cannot decode %s value", ute.Value)}
	}
	return FieldError{Field: "body", Message: err.Error()}
}
