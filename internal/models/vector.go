package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// QuestionVector is the durable feature vector of one processed answer.
type QuestionVector struct {
	ID            string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"column:user_id;type:text;index" json:"user_id"`
	SessionID     string          `gorm:"column:session_id;type:text;index:idx_qv_session_question" json:"session_id"`
	QuestionIndex int             `gorm:"column:question_index;type:integer;index:idx_qv_session_question" json:"question_index"`
	Transcript    string          `gorm:"column:transcript;type:text" json:"transcript"`
	Embedding     pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	BodyLanguage  datatypes.JSON  `gorm:"column:body_language;type:jsonb" json:"body_language"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (QuestionVector) TableName() string { return "question_vectors" }

// VectorSummary is what the API returns instead of the full vector.
type VectorSummary struct {
	SessionID     string        `json:"session_id"`
	QuestionIndex int           `json:"question_index"`
	VectorLength  int           `json:"vector_length"`
	BodyLanguage  *BodyLanguage `json:"body_language,omitempty"`
	Transcript    string        `json:"transcript"`
	Distance      *float64      `json:"distance,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
