package models

import (
	"time"
)

// Difficulty levels a check can be published under.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question types.
const (
	QuestionSingleChoice   = "single-choice"
	QuestionMultipleChoice = "multiple-choice"
	QuestionDragDrop       = "drag-drop"
	QuestionOpen           = "open-question"
)

// Accessibility controls which attempt types may see a question.
const (
	AccessAll          = "all"
	AccessPracticeOnly = "practice-only"
	AccessExamOnly     = "exam-only"
)

// Ordering policies for questions and answers.
const (
	OrderCreate = "create-order"
	OrderRandom = "random"
)

type KnowledgeCheck struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID     string    `json:"owner_id" gorm:"index;not null"`
	ShareKey    string    `json:"share_key" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"not null" validate:"required,min=1"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty" validate:"oneof=easy medium hard"`
	OpenDate    *Date     `json:"open_date,omitempty"`
	CloseDate   *Date     `json:"close_date,omitempty"`
	Disabled    bool      `json:"disabled" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Categories    []Category     `json:"categories" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE" validate:"dive"`
	Questions     []Question     `json:"questions" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE" validate:"dive"`
	Collaborators []Collaborator `json:"collaborators" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE"`
	Settings      Settings       `json:"settings" gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE"`
}

// CategoryByName returns the category with the given name, or nil.
func (c *KnowledgeCheck) CategoryByName(name string) *Category {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

type Category struct {
	ID             string  `json:"id" gorm:"primaryKey;type:uuid"`
	CheckID        string  `json:"check_id" gorm:"index;not null"`
	Name           string  `json:"name" gorm:"not null" validate:"required,min=1"`
	PrerequisiteID *string `json:"prerequisite_id,omitempty" gorm:"type:uuid"`
}

type Question struct {
	ID            string `json:"id" gorm:"primaryKey;type:uuid"`
	CheckID       string `json:"check_id" gorm:"index;not null"`
	CategoryID    string `json:"category_id" gorm:"index"`
	Category      string `json:"category" gorm:"-"`
	Type          string `json:"type" validate:"required,oneof=single-choice multiple-choice drag-drop open-question"`
	Prompt        string `json:"prompt" gorm:"not null" validate:"required,min=1"`
	Points        int    `json:"points" validate:"min=0"`
	Accessibility string `json:"accessibility" validate:"oneof=all practice-only exam-only"`

	Answers []Answer `json:"answers" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" validate:"dive"`
}

// VisibleTo reports whether the question is served for the given attempt type.
func (q *Question) VisibleTo(attemptType string) bool {
	switch q.Accessibility {
	case AccessPracticeOnly:
		return attemptType == AttemptPractice
	case AccessExamOnly:
		return attemptType == AttemptExamination
	default:
		return true
	}
}

type Answer struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	QuestionID string `json:"question_id" gorm:"index;not null"`
	Text       string `json:"text" gorm:"not null" validate:"required,min=1"`
	Correct    bool   `json:"correct"`
	Position   *int   `json:"position,omitempty"`
}

type Settings struct {
	CheckID              string `json:"check_id" gorm:"primaryKey;type:uuid"`
	QuestionOrder        string `json:"question_order" validate:"oneof=create-order random"`
	AnswerOrder          string `json:"answer_order" validate:"oneof=create-order random"`
	AllowAnonymous       bool   `json:"allow_anonymous"`
	ExamTimeFrameSeconds int    `json:"exam_time_frame_seconds" validate:"min=0"`
}

// Collaborator grants a user edit rights on a check without ownership.
type Collaborator struct {
	ID      string `json:"-" gorm:"primaryKey;type:uuid"`
	CheckID string `json:"-" gorm:"index;not null"`
	UserID  string `json:"user_id" gorm:"index;not null"`
}
