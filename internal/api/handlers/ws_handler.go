package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/notify"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/services"
	"github.com/yoockh/casecoach/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	// room for the JSON fields around the base64 payloads
	wsEnvelopeBytes = 16 << 10
)

type WSHandler struct {
	sessions services.SessionService
	pipeline *realtime.Pipeline
	feed     notify.Feed
	log      *logrus.Logger
	upgrader websocket.Upgrader
	maxBytes int64
}

func NewWSHandler(sessions services.SessionService, p *realtime.Pipeline, feed notify.Feed, log *logrus.Logger, maxChunkBytes int64) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	if maxChunkBytes <= 0 {
		maxChunkBytes = defaultMaxChunkBytes
	}
	return &WSHandler{
		sessions: sessions,
		pipeline: p,
		feed:     feed,
		log:      log,
		maxBytes: maxChunkBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin:     func(r *http.Request) bool { return true }, // TODO: restrict origin once the web client domain is fixed
		},
	}
}

type wsClientMsg struct {
	Type          string  `json:"type"` // chunk|ping
	QuestionIndex int     `json:"question_index"`
	ChunkIndex    int     `json:"chunk_index"`
	AudioBase64   string  `json:"audio_base64"`
	VideoBase64   string  `json:"video_base64"`
	IsFinal       bool    `json:"is_final"`
	Transcript    string  `json:"transcript"`
	Timestamp     float64 `json:"timestamp"`
}

type wsAck struct {
	Type string `json:"type"`
	*realtime.Ack
}

type wsError struct {
	Type       string     `json:"type"`
	Code       utils.Code `json:"code"`
	Message    string     `json:"message"`
	ChunkIndex *int       `json:"chunk_index,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// decodeB64 accepts plain base64 or a data URL.
func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if _, err := ownedSession(c.Request.Context(), h.sessions, "WSHandler.SessionWS", sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream, err := h.feed.Subscribe(ctx, sessionID)
	if err != nil {
		_ = wc.writeJSON(wsError{Type: "error", Code: utils.CodeUnavailable, Message: "event feed unavailable"})
		return
	}
	defer stream.Close()

	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID})
	log.Info("ws connected")

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readLoop(ctx, conn, wc, sessionID)
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			log.Info("ws closed by client")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			if err := wc.writeJSON(ev); err != nil {
				return
			}
		}
	}
}

// readLimit fits one audio and one video payload of maxBytes each, base64 encoded.
func (h *WSHandler) readLimit() int64 {
	return 2*int64(base64.StdEncoding.EncodedLen(int(h.maxBytes))) + wsEnvelopeBytes
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, wc *wsConn, sessionID string) {
	conn.SetReadLimit(h.readLimit())
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeJSON(wsError{Type: "error", Code: utils.CodeInvalidArgument, Message: "invalid json"})
			continue
		}

		switch msg.Type {
		case "ping":
			_ = wc.writeJSON(gin.H{"type": "pong", "ts": time.Now().UnixMilli()})

		case "chunk":
			idx := msg.ChunkIndex
			audio, aerr := decodeB64(msg.AudioBase64)
			video, verr := decodeB64(msg.VideoBase64)
			if aerr != nil || verr != nil {
				_ = wc.writeJSON(wsError{Type: "error", Code: utils.CodeInvalidArgument, Message: "invalid base64 payload", ChunkIndex: &idx})
				continue
			}
			if int64(len(audio)) > h.maxBytes || int64(len(video)) > h.maxBytes {
				_ = wc.writeJSON(wsError{Type: "error", Code: utils.CodeInvalidArgument, Message: "chunk exceeds size limit", ChunkIndex: &idx})
				continue
			}
			ack, err := h.pipeline.HandleChunk(ctx, &models.ChunkEnvelope{
				SessionID:      sessionID,
				QuestionIndex:  msg.QuestionIndex,
				ChunkIndex:     msg.ChunkIndex,
				Audio:          audio,
				Video:          video,
				CapturedAt:     msg.Timestamp,
				IsFinal:        msg.IsFinal,
				TranscriptHint: msg.Transcript,
			})
			if err != nil {
				_ = wc.writeJSON(wsError{Type: "error", Code: utils.CodeOf(err), Message: utils.PublicMessage(err), ChunkIndex: &idx})
				continue
			}
			_ = wc.writeJSON(wsAck{Type: "ack", Ack: ack})

		default:
			_ = wc.writeJSON(wsError{Type: "error", Code: utils.CodeInvalidArgument, Message: "unknown message type"})
		}
	}
}
