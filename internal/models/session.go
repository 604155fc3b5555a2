package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StreamingMediaPath marks a session that only receives realtime chunks.
const StreamingMediaPath = "streaming://realtime"

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`       // uuid from Supabase Auth

	MediaPath string     `bson:"media_path" json:"media_path"`
	Status    string     `bson:"status" json:"status"` // active|ended
	Questions []Question `bson:"questions" json:"questions"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	EndedAt     *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}

func (s *Session) IsStreaming() bool {
	return s.MediaPath == "" || strings.HasPrefix(s.MediaPath, "streaming://")
}

// Question returns the question slot with the given index, or nil.
func (s *Session) Question(index int) *Question {
	for i := range s.Questions {
		if s.Questions[i].Index == index {
			return &s.Questions[i]
		}
	}
	return nil
}

// Question is one answer slot inside a session. Processing results are written
// into it after each take completes.
type Question struct {
	Index   int     `bson:"index" json:"index"` // Q1=1, Q2=2, ...
	StartTs float64 `bson:"start_ts" json:"start_ts"`
	EndTs   float64 `bson:"end_ts" json:"end_ts"`

	Status       string        `bson:"status,omitempty" json:"status,omitempty"`
	Transcript   string        `bson:"transcript,omitempty" json:"transcript,omitempty"`
	BodyLanguage *BodyLanguage `bson:"body_language,omitempty" json:"body_language,omitempty"`
	Vector       []float32     `bson:"vector,omitempty" json:"-"`
	VectorLength int           `bson:"vector_length,omitempty" json:"vector_length,omitempty"`
	Feedback     *Feedback     `bson:"feedback,omitempty" json:"feedback,omitempty"`
	ErrorMessage string        `bson:"error_message,omitempty" json:"error_message,omitempty"`
	RecordingURL string        `bson:"recording_url,omitempty" json:"recording_url,omitempty"`

	Analysis    *QuestionResult `bson:"analysis,omitempty" json:"analysis,omitempty"`
	ProcessedAt *time.Time      `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

type QuestionBoundary struct {
	Index   int     `json:"index"`
	StartTs float64 `json:"start_ts"`
	EndTs   float64 `json:"end_ts"`
}
