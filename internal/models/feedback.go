package models

import (
	"time"

	"github.com/lib/pq"
)

// QuestionFeedback keeps the qualitative feedback of the latest take of a question.
type QuestionFeedback struct {
	SessionID     string `gorm:"column:session_id;type:text;primaryKey" json:"session_id"`
	QuestionIndex int    `gorm:"column:question_index;type:integer;primaryKey" json:"question_index"`
	UserID        string `gorm:"column:user_id;type:text;index" json:"user_id"`

	Strengths    pq.StringArray `gorm:"column:strengths;type:text[]" json:"strengths"`
	Improvements pq.StringArray `gorm:"column:improvements;type:text[]" json:"improvements"`
	Suggestions  pq.StringArray `gorm:"column:suggestions;type:text[]" json:"suggestions"`
	OverallScore int            `gorm:"column:overall_score;type:integer" json:"overall_score"`
	Narrative    string         `gorm:"column:narrative;type:text" json:"narrative"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (QuestionFeedback) TableName() string { return "question_feedback" }
