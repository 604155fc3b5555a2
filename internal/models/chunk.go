package models

import (
	"regexp"
	"strings"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ChunkEnvelope is one captured slice of a candidate's answer.
// ChunkIndex is a logical position assigned by the client; arrival order may differ.
type ChunkEnvelope struct {
	SessionID      string  `json:"session_id"`
	QuestionIndex  int     `json:"question_index"`
	ChunkIndex     int     `json:"chunk_index"`
	Audio          []byte  `json:"-"`
	Video          []byte  `json:"-"`
	CapturedAt     float64 `json:"timestamp"`
	IsFinal        bool    `json:"is_final"`
	TranscriptHint string  `json:"transcript,omitempty"`
}

// Problem describes why the envelope cannot be accepted, or "" when it is valid.
func (c *ChunkEnvelope) Problem() string {
	switch {
	case strings.TrimSpace(c.SessionID) == "":
		return "session_id is required"
	case !sessionIDPattern.MatchString(c.SessionID):
		return "session_id has invalid characters"
	case c.QuestionIndex < 0:
		return "question_index must be >= 0"
	case c.ChunkIndex < 0:
		return "chunk_index must be >= 0"
	case len(c.Audio) == 0 && len(c.Video) == 0:
		return "at least one of audio or video is required"
	}
	return ""
}

func ValidSessionID(id string) bool { return sessionIDPattern.MatchString(id) }
