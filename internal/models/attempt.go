package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attempt types. Examinations and practice runs share one result table,
// discriminated by Type.
const (
	AttemptExamination = "examination"
	AttemptPractice    = "practice"
)

type AttemptResult struct {
	ID         string         `json:"id" gorm:"primaryKey;type:uuid"`
	CheckID    string         `json:"check_id" gorm:"index;not null"`
	UserID     string         `json:"user_id" gorm:"index;not null"`
	Type       string         `json:"type" gorm:"index;not null"`
	CategoryID *string        `json:"category_id,omitempty" gorm:"type:uuid"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Score      int            `json:"score"`
	MaxScore   int            `json:"max_score"`
	Results    datatypes.JSON `json:"results"`
	CreatedAt  time.Time      `json:"created_at"`
}

type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
