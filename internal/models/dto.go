package models

type AnswerDTO struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Position *int   `json:"position,omitempty"`
	Correct  bool   `json:"correct,omitempty"`
}

type QuestionDTO struct {
	ID            string      `json:"id"`
	Category      string      `json:"category"`
	Type          string      `json:"type"`
	Prompt        string      `json:"prompt"`
	Points        int         `json:"points"`
	Accessibility string      `json:"accessibility"`
	Answers       []AnswerDTO `json:"answers"`
}

// ToDTO maps a question for the wire. Correctness flags and target positions
// are only included for editors; for drag-drop questions the position order
// is the solution, so participants must never see either.
func (q Question) ToDTO(isEditor bool) QuestionDTO {
	answers := make([]AnswerDTO, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = AnswerDTO{
			ID:   a.ID,
			Text: a.Text,
		}
		if isEditor {
			answers[i].Correct = a.Correct
			answers[i].Position = a.Position
		}
	}
	return QuestionDTO{
		ID:            q.ID,
		Category:      q.Category,
		Type:          q.Type,
		Prompt:        q.Prompt,
		Points:        q.Points,
		Accessibility: q.Accessibility,
		Answers:       answers,
	}
}

// CheckSummaryDTO is the listing/discovery shape: no questions, no settings.
type CheckSummaryDTO struct {
	ID            string `json:"id"`
	ShareKey      string `json:"share_key"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
	OpenDate      *Date  `json:"open_date,omitempty"`
	CloseDate     *Date  `json:"close_date,omitempty"`
}

func (c KnowledgeCheck) ToSummaryDTO() CheckSummaryDTO {
	return CheckSummaryDTO{
		ID:            c.ID,
		ShareKey:      c.ShareKey,
		Name:          c.Name,
		Description:   c.Description,
		Difficulty:    c.Difficulty,
		QuestionCount: len(c.Questions),
		OpenDate:      c.OpenDate,
		CloseDate:     c.CloseDate,
	}
}
