package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/notify"
	"github.com/yoockh/casecoach/internal/utils"
)

// ResultStore persists the outcome of a take onto the session.
type ResultStore interface {
	SaveResult(ctx context.Context, sessionID string, take uint64, res *models.ProcessedResult) error
}

// Journal records accepted chunks and take status changes.
type Journal interface {
	Record(ctx context.Context, chunk *models.RealtimeChunk) error
	MarkTake(ctx context.Context, sessionID string, questionIndex int, take uint64, status string) error
}

// Archiver uploads the combined audio of a finished take and returns its URL.
type Archiver interface {
	Archive(ctx context.Context, key Key, take uint64, handle string) (string, error)
}

type Config struct {
	Registry  *Registry
	Store     *ChunkStore
	Combiner  *Combiner
	Processor *Processor
	Events    notify.Publisher

	Results ResultStore
	Journal Journal
	Archive Archiver
	History *History

	TakeTimeout time.Duration
	// Sync runs takes on the calling goroutine.
	Sync bool
	Log  *logrus.Logger
}

// Ack is returned for every accepted chunk.
type Ack struct {
	SessionID         string `json:"session_id"`
	QuestionIndex     int    `json:"question_index"`
	ChunkIndex        int    `json:"chunk_index"`
	Take              uint64 `json:"take"`
	IsFinal           bool   `json:"is_final"`
	NewTake           bool   `json:"new_take"`
	ProcessingStarted bool   `json:"processing_started"`
	AlreadyProcessing bool   `json:"already_processing"`
}

type Pipeline struct {
	cfg Config
	log *logrus.Logger
	wg  sync.WaitGroup
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil || cfg.Store == nil || cfg.Combiner == nil || cfg.Processor == nil {
		return nil, errors.New("realtime pipeline missing dependency: Registry/Store/Combiner/Processor must be set")
	}
	if cfg.Events == nil {
		cfg.Events = noopPublisher{}
	}
	if cfg.TakeTimeout <= 0 {
		cfg.TakeTimeout = 2 * time.Minute
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	return &Pipeline{cfg: cfg, log: cfg.Log}, nil
}

func (p *Pipeline) Registry() *Registry { return p.cfg.Registry }
func (p *Pipeline) History() *History   { return p.cfg.History }

// HandleChunk stages and records one chunk. A final chunk that wins the
// processing permit starts the take; a final chunk for a take that is
// already processing is accepted without starting anything.
func (p *Pipeline) HandleChunk(ctx context.Context, env *models.ChunkEnvelope) (*Ack, error) {
	const op = "Pipeline.HandleChunk"

	if env == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chunk is required", nil)
	}
	if msg := env.Problem(); msg != "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, msg, nil)
	}

	key := Key{SessionID: env.SessionID, QuestionIndex: env.QuestionIndex}
	log := p.log.WithFields(logrus.Fields{
		"session_id":     key.SessionID,
		"question_index": key.QuestionIndex,
		"chunk_index":    env.ChunkIndex,
	})

	var audio, video string
	if len(env.Audio) > 0 {
		h, err := p.cfg.Store.StageAudio(ctx, key, env.ChunkIndex, env.Audio)
		if err != nil {
			return nil, err
		}
		audio = h
	}
	if len(env.Video) > 0 {
		h, err := p.cfg.Store.StageVideo(ctx, key, env.ChunkIndex, env.Video)
		if err != nil {
			p.cfg.Store.Discard(audio)
			return nil, err
		}
		video = h
	}

	rec := p.cfg.Registry.RecordChunk(key, Chunk{Index: env.ChunkIndex, Audio: audio, Video: video, CapturedAt: env.CapturedAt})
	if len(rec.Replaced) > 0 {
		p.cfg.Store.Discard(rec.Replaced...)
		log.WithField("replaced", len(rec.Replaced)).Debug("chunk index resent, previous files discarded")
	}
	p.journal(ctx, env, rec, audio, video)

	ack := &Ack{
		SessionID:     key.SessionID,
		QuestionIndex: key.QuestionIndex,
		ChunkIndex:    env.ChunkIndex,
		Take:          rec.Take,
		IsFinal:       env.IsFinal,
		NewTake:       rec.Created,
	}
	if !env.IsFinal {
		return ack, nil
	}

	permit, ok := p.cfg.Registry.TryBeginProcessing(key)
	if !ok {
		ack.AlreadyProcessing = true
		log.WithField("take", rec.Take).Info("final chunk ignored, take already processing")
		return ack, nil
	}
	ack.ProcessingStarted = true
	ack.Take = permit.Take

	p.markTake(key, permit.Take, string(models.StatusProcessing))

	hint := env.TranscriptHint
	if p.cfg.Sync {
		p.runTake(permit, hint)
		return ack, nil
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runTake(permit, hint)
	}()
	return ack, nil
}

// Wait blocks until every started take has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Sweep evicts idle accumulating takes and deletes their files.
func (p *Pipeline) Sweep(idle time.Duration) int {
	evicted := p.cfg.Registry.Sweep(idle)
	for _, snap := range evicted {
		n := p.cfg.Store.Discard(snap.Handles()...)
		p.log.WithFields(logrus.Fields{
			"session_id":     snap.Key.SessionID,
			"question_index": snap.Key.QuestionIndex,
			"take":           snap.Take,
			"discarded":      n,
		}).Info("idle take evicted")
	}
	return len(evicted)
}

func (p *Pipeline) runTake(permit *Permit, hint string) {
	key := permit.Key
	started := time.Now()
	log := p.log.WithFields(logrus.Fields{
		"session_id":     key.SessionID,
		"question_index": key.QuestionIndex,
		"take":           permit.Take,
	})

	// guarantees eviction even if something below panics; a no-op after the
	// normal Release
	defer permit.Release(&models.ProcessedResult{
		QuestionIndex: key.QuestionIndex,
		Status:        models.StatusError,
		ErrorMessage:  "take aborted",
	})

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.TakeTimeout)
	defer cancel()

	res, derived := p.executeTake(ctx, permit, hint)

	if res.Status == models.StatusError {
		p.cfg.Events.Publish(notify.ProcessingError(key.SessionID, key.QuestionIndex, permit.Take, res.ErrorMessage))
		log.WithField("error", res.ErrorMessage).Warn("take failed")
	} else {
		p.cfg.Events.Publish(notify.QuestionProcessed(key.SessionID, permit.Take, res))
	}
	p.markTake(key, permit.Take, string(res.Status))

	final, _ := permit.Release(res)
	discarded := p.cfg.Store.Discard(append(final.Handles(), derived)...)
	if p.cfg.History != nil {
		p.cfg.History.Add(final, time.Since(started))
	}

	log.WithFields(logrus.Fields{
		"status":      res.Status,
		"audio":       len(final.Audio),
		"video":       len(final.Video),
		"late":        len(final.Late),
		"discarded":   discarded,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("take finished")
}

// executeTake never returns a nil result. derived is a combined file to discard.
func (p *Pipeline) executeTake(ctx context.Context, permit *Permit, hint string) (res *models.ProcessedResult, derived string) {
	key := permit.Key
	defer func() {
		if r := recover(); r != nil {
			if res == nil {
				res = &models.ProcessedResult{QuestionIndex: key.QuestionIndex}
			}
			res.Status = models.StatusError
			res.ErrorMessage = fmt.Sprintf("internal error: %v", r)
		}
	}()

	combined, err := p.cfg.Combiner.CombineAudio(ctx, key, permit.AudioHandles())
	if err != nil {
		return &models.ProcessedResult{
			QuestionIndex: key.QuestionIndex,
			Status:        models.StatusError,
			ErrorMessage:  err.Error(),
		}, ""
	}
	if combined.Derived {
		derived = combined.Handle
	}

	res = p.cfg.Processor.Process(ctx, Input{
		QuestionIndex:  key.QuestionIndex,
		Audio:          combined.Handle,
		Video:          p.cfg.Combiner.CombineVideo(permit.VideoHandles()),
		TranscriptHint: hint,
	})
	if combined.Degraded {
		res.Warnings = append(res.Warnings, combined.Warning)
	}

	if p.cfg.Archive != nil && !combined.Empty() && res.Status == models.StatusCompleted {
		url, err := p.cfg.Archive.Archive(ctx, key, permit.Take, combined.Handle)
		if err != nil {
			p.log.WithError(err).WithField("session_id", key.SessionID).Warn("recording archive failed")
			res.Warnings = append(res.Warnings, "recording archive failed")
		} else {
			res.RecordingURL = url
		}
	}

	if p.cfg.Results != nil {
		if err := p.cfg.Results.SaveResult(ctx, key.SessionID, permit.Take, res); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"session_id":     key.SessionID,
				"question_index": key.QuestionIndex,
			}).Error("saving take result failed")
			res.Warnings = append(res.Warnings, "result could not be saved: "+utils.PublicMessage(err))
		}
	}
	return res, derived
}

func (p *Pipeline) journal(ctx context.Context, env *models.ChunkEnvelope, rec Recorded, audio, video string) {
	if p.cfg.Journal == nil {
		return
	}
	status := string(PhaseAccumulating)
	if rec.Processing {
		status = "late"
	}
	err := p.cfg.Journal.Record(ctx, &models.RealtimeChunk{
		SessionID:     env.SessionID,
		QuestionIndex: env.QuestionIndex,
		ChunkIndex:    env.ChunkIndex,
		Take:          rec.Take,
		AudioHandle:   audio,
		VideoHandle:   video,
		AudioBytes:    len(env.Audio),
		VideoBytes:    len(env.Video),
		IsFinal:       env.IsFinal,
		TakeStatus:    status,
		CapturedAt:    env.CapturedAt,
	})
	if err != nil {
		p.log.WithError(err).WithField("session_id", env.SessionID).Warn("chunk journal write failed")
	}
}

func (p *Pipeline) markTake(key Key, take uint64, status string) {
	if p.cfg.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cfg.Journal.MarkTake(ctx, key.SessionID, key.QuestionIndex, take, status); err != nil {
		p.log.WithError(err).WithField("session_id", key.SessionID).Warn("take status update failed")
	}
}
