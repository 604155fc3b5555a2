package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/media"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/notify"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/services"
	"github.com/yoockh/casecoach/internal/utils"
)

const (
	DefaultStream = "session:process"
	DefaultGroup  = "session-workers"
)

// Enqueue adds a batch processing job for sessionID to stream.
func Enqueue(ctx context.Context, rdb *redis.Client, stream, sessionID string) (string, error) {
	if stream == "" {
		stream = DefaultStream
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"session_id":  sessionID,
			"enqueued_at": strconv.FormatInt(time.Now().Unix(), 10),
		},
	}).Result()
}

// StreamQueue enqueues batch jobs onto a Redis stream.
type StreamQueue struct {
	Redis  *redis.Client
	Stream string
}

func (q *StreamQueue) Enqueue(ctx context.Context, sessionID string) (string, error) {
	return Enqueue(ctx, q.Redis, q.Stream, sessionID)
}

// SessionWorkerPool processes whole recordings question by question. Jobs
// come from a Redis stream consumer group.
type SessionWorkerPool struct {
	Redis      *redis.Client
	Sessions   services.SessionService
	Results    realtime.ResultStore
	Processor  *realtime.Processor
	Media      media.SegmentExtractor
	Events     notify.Publisher
	NumWorkers int
	TempDir    string

	// QuestionTimeout bounds one question's extract and processing.
	QuestionTimeout time.Duration

	// Jobs that failed transiently stay pending; after RetryIdle they are
	// claimed again, at most MaxDeliveries times in total.
	RetryIdle     time.Duration
	MaxDeliveries int64

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *SessionWorkerPool) defaults() error {
	if p.Sessions == nil || p.Processor == nil || p.Media == nil {
		return errors.New("SessionWorkerPool missing dependency: Sessions/Processor/Media must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.TempDir == "" {
		p.TempDir = os.TempDir()
	}
	if p.QuestionTimeout <= 0 {
		p.QuestionTimeout = 3 * time.Minute
	}
	if p.RetryIdle <= 0 {
		p.RetryIdle = time.Minute
	}
	if p.MaxDeliveries <= 0 {
		p.MaxDeliveries = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	return nil
}

func (p *SessionWorkerPool) publish(ev notify.Event) {
	if p.Events != nil {
		p.Events.Publish(ev)
	}
}

func (p *SessionWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil {
		return errors.New("SessionWorkerPool missing dependency: Redis must be set")
	}
	if err := p.defaults(); err != nil {
		return err
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "group": p.Group, "workers": p.NumWorkers}).Info("session workers started")
	return nil
}

func (p *SessionWorkerPool) runConsumer(ctx context.Context, consumer string) {
	lastReclaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if time.Since(lastReclaim) >= p.RetryIdle {
			p.reclaim(ctx, consumer, p.RetryIdle)
			lastReclaim = time.Now()
		}

		if err := p.poll(ctx, consumer, 5*time.Second); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// poll reads and handles at most one new job.
func (p *SessionWorkerPool) poll(ctx context.Context, consumer string, block time.Duration) error {
	res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    p.Group,
		Consumer: consumer,
		Streams:  []string{p.Stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, stream := range res {
		for _, msg := range stream.Messages {
			if p.handleMsg(ctx, msg) {
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
	return nil
}

// reclaim takes over jobs left pending for at least minIdle and runs them again.
func (p *SessionWorkerPool) reclaim(ctx context.Context, consumer string, minIdle time.Duration) {
	msgs, _, err := p.Redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   p.Stream,
		Group:    p.Group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xautoclaim failed")
		}
		return
	}
	for _, msg := range msgs {
		if n := p.deliveries(ctx, msg.ID); p.exhausted(n) {
			p.Logger.WithFields(logrus.Fields{"redis_id": msg.ID, "deliveries": n}).Error("job dropped after repeated failures")
			_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			continue
		}
		if p.handleMsg(ctx, msg) {
			_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
		}
	}
}

func (p *SessionWorkerPool) deliveries(ctx context.Context, id string) int64 {
	pending, err := p.Redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: p.Stream,
		Group:  p.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return pending[0].RetryCount
}

func (p *SessionWorkerPool) exhausted(deliveries int64) bool {
	return deliveries > p.MaxDeliveries
}

// handleMsg reports whether the job is finished and can be acked: it ran, or it
// failed in a way a retry cannot fix.
func (p *SessionWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	sessionID, _ := msg.Values["session_id"].(string)
	if sessionID == "" {
		p.Logger.WithField("redis_id", msg.ID).Warn("job without session_id dropped")
		return true
	}
	log := p.Logger.WithFields(logrus.Fields{"redis_id": msg.ID, "session_id": sessionID})
	err := p.ProcessSession(ctx, sessionID)
	switch {
	case err == nil:
		return true
	case permanent(err):
		log.WithError(err).Error("session processing failed")
		return true
	default:
		log.WithError(err).Warn("session processing failed, job left pending for retry")
		return false
	}
}

func permanent(err error) bool {
	switch utils.CodeOf(err) {
	case utils.CodeNotFound, utils.CodeInvalidArgument, utils.CodeForbidden:
		return true
	}
	return false
}

// ProcessSession runs every question of a recorded session. A failing
// question is reported and skipped; the session is marked processed at the end.
func (p *SessionWorkerPool) ProcessSession(ctx context.Context, sessionID string) error {
	const op = "SessionWorkerPool.ProcessSession"
	if err := p.defaults(); err != nil {
		return err
	}
	sess, err := p.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.IsStreaming() {
		p.publish(notify.ProcessingError(sessionID, 0, 0, "session has no recording to process"))
		return utils.E(utils.CodeInvalidArgument, op, "session has no recording", nil)
	}
	if len(sess.Questions) == 0 {
		p.publish(notify.ProcessingError(sessionID, 0, 0, "session has no questions"))
		return utils.E(utils.CodeInvalidArgument, op, "session has no questions", nil)
	}

	log := p.Logger.WithField("session_id", sessionID)
	start := time.Now()
	failed := 0
	for _, q := range sess.Questions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := p.processQuestion(ctx, sess, q)
		if res.Status == models.StatusError {
			failed++
			p.publish(notify.ProcessingError(sessionID, q.Index, 0, res.ErrorMessage))
			log.WithFields(logrus.Fields{"question_index": q.Index, "error": res.ErrorMessage}).Warn("question failed")
		} else {
			p.publish(notify.QuestionProcessed(sessionID, 0, res))
		}
	}

	if err := p.Sessions.MarkProcessed(ctx, sessionID); err != nil {
		log.WithError(err).Warn("mark processed failed")
	}
	log.WithFields(logrus.Fields{
		"questions":   len(sess.Questions),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("session processed")
	return nil
}

func (p *SessionWorkerPool) processQuestion(ctx context.Context, sess *models.Session, q models.Question) *models.ProcessedResult {
	ctx, cancel := context.WithTimeout(ctx, p.QuestionTimeout)
	defer cancel()

	seg := filepath.Join(p.TempDir, fmt.Sprintf("%s-q%d-%s.wav", sess.SessionID, q.Index, uuid.NewString()[:8]))
	defer os.Remove(seg)

	if err := p.Media.Extract(ctx, sess.MediaPath, seg, q.StartTs, q.EndTs); err != nil {
		return &models.ProcessedResult{
			QuestionIndex: q.Index,
			Status:        models.StatusError,
			ErrorMessage:  "segment extraction failed: " + err.Error(),
		}
	}

	in := realtime.Input{
		QuestionIndex:  q.Index,
		Audio:          seg,
		TranscriptHint: q.Transcript,
		Seed:           fmt.Sprintf("%s#%.3f-%.3f", sess.MediaPath, q.StartTs, q.EndTs),
	}
	var videoWarning string
	if media.HasVideo(sess.MediaPath) {
		clip := strings.TrimSuffix(seg, ".wav") + videoExt(sess.MediaPath)
		defer os.Remove(clip)
		if err := p.Media.ExtractVideo(ctx, sess.MediaPath, clip, q.StartTs, q.EndTs); err != nil {
			videoWarning = "video segment unavailable, body language seeded from range: " + err.Error()
		} else {
			in.Video = clip
		}
	}

	res := p.Processor.Process(ctx, in)
	if videoWarning != "" {
		res.Warnings = append(res.Warnings, videoWarning)
	}

	if p.Results != nil {
		if err := p.Results.SaveResult(ctx, sess.SessionID, 0, res); err != nil {
			res.Warnings = append(res.Warnings, "result could not be saved: "+err.Error())
		}
	}
	return res
}

func videoExt(src string) string {
	if ext := filepath.Ext(src); ext != "" {
		return ext
	}
	return ".mp4"
}
