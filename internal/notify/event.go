// Package notify fans lifecycle events of realtime takes out to session observers.
package notify

import (
	"context"
	"time"

	"github.com/yoockh/casecoach/internal/models"
)

type EventType string

const (
	EventChunkReceived     EventType = "chunk-received"
	EventProcessingStarted EventType = "processing-started"
	EventQuestionProcessed EventType = "question-processed"
	EventProcessingError   EventType = "processing-error"
)

type Event struct {
	Seq           uint64                  `json:"seq"`
	Type          EventType               `json:"type"`
	SessionID     string                  `json:"sessionId"`
	QuestionIndex int                     `json:"questionIndex"`
	ChunkIndex    *int                    `json:"chunkIndex,omitempty"`
	Take          uint64                  `json:"take,omitempty"`
	Timestamp     float64                 `json:"timestamp,omitempty"`
	Result        *models.ProcessedResult `json:"result,omitempty"`
	Error         string                  `json:"error,omitempty"`
	EmittedAt     time.Time               `json:"emittedAt"`
}

func ChunkReceived(sessionID string, questionIndex, chunkIndex int, take uint64, capturedAt float64) Event {
	idx := chunkIndex
	return Event{
		Type:          EventChunkReceived,
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		ChunkIndex:    &idx,
		Take:          take,
		Timestamp:     capturedAt,
	}
}

func ProcessingStarted(sessionID string, questionIndex int, take uint64) Event {
	return Event{Type: EventProcessingStarted, SessionID: sessionID, QuestionIndex: questionIndex, Take: take}
}

func QuestionProcessed(sessionID string, take uint64, result *models.ProcessedResult) Event {
	return Event{Type: EventQuestionProcessed, SessionID: sessionID, QuestionIndex: result.QuestionIndex, Take: take, Result: result}
}

func ProcessingError(sessionID string, questionIndex int, take uint64, msg string) Event {
	return Event{Type: EventProcessingError, SessionID: sessionID, QuestionIndex: questionIndex, Take: take, Error: msg}
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ev Event)
}

// Sink delivers one event to a transport.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Stream is a live subscription to one session's events.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Feed hands out per-session subscriptions.
type Feed interface {
	Subscribe(ctx context.Context, sessionID string) (Stream, error)
}
