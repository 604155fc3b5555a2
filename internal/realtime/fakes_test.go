package realtime

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/logger"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/notify"
)

// copyTranscoder "transcodes" by copying bytes.
type copyTranscoder struct{ fail bool }

func (c copyTranscoder) ToPCM(_ context.Context, src, dst string) error {
	if c.fail {
		return errors.New("ffmpeg exited 1")
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o600)
}

// joinConcat writes the inputs' bytes back to back.
type joinConcat struct {
	fail  bool
	calls atomic.Int32
}

func (j *joinConcat) Concat(ctx context.Context, inputs []string, dst string) error {
	j.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.fail {
		return errors.New("concat filter failed")
	}
	var out []byte
	for _, in := range inputs {
		b, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		out = append(out, b...)
	}
	return os.WriteFile(dst, out, 0o600)
}

// fileSTT returns the file's content as its transcript.
type fileSTT struct {
	err   error
	block bool
	calls atomic.Int32
	seen  []string
	mu    sync.Mutex
}

func (f *fileSTT) Transcribe(ctx context.Context, handle string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, handle)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	b, err := os.ReadFile(handle)
	return string(b), err
}

type fakeBody struct {
	failWhen string
	gate     chan struct{}
	calls    atomic.Int32
	mu       sync.Mutex
	sources  []string
}

func (f *fakeBody) Analyze(_ context.Context, source string) (models.BodyLanguage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sources = append(f.sources, source)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.failWhen != "" && strings.Contains(source, f.failWhen) {
		return models.BodyLanguage{}, errors.New("camera feed unreadable")
	}
	return models.BodyLanguage{Warmth: 0.6, Competence: 0.7, Affect: 0.5, EyeContactRatio: 0.8, GestureIntensity: 0.4, PostureStability: 0.9}, nil
}

func (f *fakeBody) lastSource() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return ""
	}
	return f.sources[len(f.sources)-1]
}

type fakeVectors struct {
	panicOn bool
	texts   []string
	mu      sync.Mutex
}

func (f *fakeVectors) Build(_ context.Context, text string, bl models.BodyLanguage) ([]float32, error) {
	if f.panicOn {
		panic("index out of range")
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return append([]float32{float32(len(text))}, bl.Vector()...), nil
}

type fakeFeedback struct {
	err   error
	calls atomic.Int32
}

func (f *fakeFeedback) Generate(_ context.Context, transcript string, _ models.BodyLanguage, _ int) (*models.Feedback, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Feedback{
		Strengths:    []string{"clear opening"},
		Improvements: []string{"quantify"},
		OverallScore: 72,
		Narrative:    transcript,
		Suggestions:  []string{"use a driver tree"},
	}, nil
}

type memResults struct {
	mu    sync.Mutex
	err   error
	saved map[string]*models.ProcessedResult
}

func (m *memResults) SaveResult(_ context.Context, sessionID string, _ uint64, res *models.ProcessedResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]*models.ProcessedResult{}
	}
	m.saved[Key{SessionID: sessionID, QuestionIndex: res.QuestionIndex}.String()] = res
	return nil
}

type memJournal struct {
	mu     sync.Mutex
	chunks []models.RealtimeChunk
	takes  []string
}

func (j *memJournal) Record(_ context.Context, c *models.RealtimeChunk) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = append(j.chunks, *c)
	return nil
}

func (j *memJournal) MarkTake(_ context.Context, _ string, _ int, _ uint64, status string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.takes = append(j.takes, status)
	return nil
}

type fakeArchive struct{}

func (fakeArchive) Archive(_ context.Context, key Key, take uint64, _ string) (string, error) {
	return "gs://recordings/" + key.String(), nil
}

type harness struct {
	pipeline   *Pipeline
	events     *notify.Recorder
	dispatcher *notify.Dispatcher
	dir        string
	stt        *fileSTT
	body       *fakeBody
	vectors    *fakeVectors
	feedback   *fakeFeedback
	concat     *joinConcat
	results    *memResults
	journal    *memJournal
}

func newHarness(t *testing.T, tweak func(h *harness, cfg *Config)) *harness {
	t.Helper()
	log := logger.Discard()
	h := &harness{
		events:   &notify.Recorder{},
		dir:      t.TempDir(),
		stt:      &fileSTT{},
		body:     &fakeBody{},
		vectors:  &fakeVectors{},
		feedback: &fakeFeedback{},
		concat:   &joinConcat{},
		results:  &memResults{},
		journal:  &memJournal{},
	}
	h.dispatcher = notify.NewDispatcher(log, h.events)

	store, err := NewChunkStore(h.dir, copyTranscoder{}, log)
	require.NoError(t, err)

	cfg := Config{
		Registry: NewRegistry(h.dispatcher),
		Store:    store,
		Combiner: NewCombiner(CombineConcat, h.concat, h.dir, log),
		Processor: &Processor{
			STT:          h.stt,
			Body:         h.body,
			Vectors:      h.vectors,
			Feedback:     h.feedback,
			StageTimeout: time.Second,
			Log:          log,
		},
		Events:      h.dispatcher,
		Results:     h.results,
		Journal:     h.journal,
		History:     NewHistory(10),
		TakeTimeout: 5 * time.Second,
		Log:         log,
	}
	if tweak != nil {
		tweak(h, &cfg)
	}
	h.pipeline, err = NewPipeline(cfg)
	require.NoError(t, err)
	return h
}

// drain waits for running takes and flushes every queued event.
func (h *harness) drain() {
	h.pipeline.Wait()
	h.dispatcher.Close()
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func chunk(sid string, q, idx int, audio string, final bool) *models.ChunkEnvelope {
	return &models.ChunkEnvelope{
		SessionID:     sid,
		QuestionIndex: q,
		ChunkIndex:    idx,
		Audio:         []byte(audio),
		CapturedAt:    float64(1700000000 + idx),
		IsFinal:       final,
	}
}
