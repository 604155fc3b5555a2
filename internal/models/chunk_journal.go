package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RealtimeChunk is the journal entry written for every accepted chunk.
// Documents expire through the TTL index on expires_at.
type RealtimeChunk struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID     string             `bson:"session_id" json:"session_id"`
	QuestionIndex int                `bson:"question_index" json:"question_index"`
	ChunkIndex    int                `bson:"chunk_index" json:"chunk_index"`
	Take          uint64             `bson:"take" json:"take"`

	AudioHandle string `bson:"audio_handle,omitempty" json:"audio_handle,omitempty"`
	VideoHandle string `bson:"video_handle,omitempty" json:"video_handle,omitempty"`
	AudioBytes  int    `bson:"audio_bytes,omitempty" json:"audio_bytes,omitempty"`
	VideoBytes  int    `bson:"video_bytes,omitempty" json:"video_bytes,omitempty"`
	IsFinal     bool   `bson:"is_final" json:"is_final"`

	TakeStatus string    `bson:"take_status" json:"take_status"` // accumulating|processing|completed|error
	CapturedAt float64   `bson:"captured_at" json:"captured_at"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
