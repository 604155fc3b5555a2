package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/analysis"
	"github.com/yoockh/casecoach/internal/logger"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/notify"
	"github.com/yoockh/casecoach/internal/providers/bodylang"
	"github.com/yoockh/casecoach/internal/providers/embedding"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/utils"
)

type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	processed []string
	getErr    error
}

func (f *fakeSessions) Create(context.Context, string, string, []models.QuestionBoundary) (*models.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeSessions) Get(_ context.Context, id string) (*models.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "fake.Get", "session not found", nil)
	}
	return s, nil
}

func (f *fakeSessions) End(context.Context, string) (*models.Session, error) { return nil, nil }

func (f *fakeSessions) SetStatus(context.Context, string, string) error { return nil }

func (f *fakeSessions) MarkProcessed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return nil
}

// textExtractor writes the requested range as the segment's content.
type textExtractor struct {
	failAt    float64
	failVideo bool
	made      []string
	videos    []string
}

func (x *textExtractor) ExtractVideo(_ context.Context, src, dst string, start, end float64) error {
	if x.failVideo || end <= start {
		return fmt.Errorf("extract video: no video stream in %s", src)
	}
	x.made = append(x.made, dst)
	x.videos = append(x.videos, dst)
	return os.WriteFile(dst, []byte("video"), 0o600)
}

// clipWatcher records which source the body analyzer saw and whether it
// was still on disk at that moment.
type clipWatcher struct {
	bodylang.Seeded
	sources []string
	present []bool
}

func (c *clipWatcher) Analyze(ctx context.Context, source string) (models.BodyLanguage, error) {
	_, err := os.Stat(source)
	c.sources = append(c.sources, source)
	c.present = append(c.present, err == nil)
	return c.Seeded.Analyze(ctx, source)
}

func (x *textExtractor) Extract(_ context.Context, src, dst string, start, end float64) error {
	if end <= start || (x.failAt > 0 && start == x.failAt) {
		return fmt.Errorf("extract: bad range %.1f-%.1f", start, end)
	}
	x.made = append(x.made, dst)
	return os.WriteFile(dst, []byte(fmt.Sprintf("answer from %.0f to %.0f", start, end)), 0o600)
}

type fileSTT struct{}

func (fileSTT) Transcribe(_ context.Context, handle string) (string, error) {
	b, err := os.ReadFile(handle)
	return string(b), err
}

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) Publish(ev notify.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

type memResults struct {
	saved map[int]*models.ProcessedResult
}

func (m *memResults) SaveResult(_ context.Context, _ string, _ uint64, res *models.ProcessedResult) error {
	if m.saved == nil {
		m.saved = map[int]*models.ProcessedResult{}
	}
	m.saved[res.QuestionIndex] = res
	return nil
}

func newPool(t *testing.T, sessions ...*models.Session) (*SessionWorkerPool, *fakeSessions, *textExtractor, *capture, *memResults) {
	t.Helper()
	fs := &fakeSessions{sessions: map[string]*models.Session{}}
	for _, s := range sessions {
		fs.sessions[s.SessionID] = s
	}
	log := logger.Discard()
	x := &textExtractor{}
	events := &capture{}
	results := &memResults{}
	p := &SessionWorkerPool{
		Sessions: fs,
		Results:  results,
		Processor: &realtime.Processor{
			STT:      fileSTT{},
			Body:     bodylang.Seeded{},
			Vectors:  embedding.NewBuilder(nil, 16, log),
			Feedback: &analysis.FeedbackGenerator{Log: log},
			Log:      log,
		},
		Media:   x,
		Events:  events,
		TempDir: t.TempDir(),
		Logger:  log,
	}
	return p, fs, x, events, results
}

func recorded(id string, qs ...models.Question) *models.Session {
	return &models.Session{SessionID: id, MediaPath: "/data/rec.mp4", Questions: qs}
}

func TestProcessSessionRunsEveryQuestion(t *testing.T) {
	p, fs, x, events, results := newPool(t, recorded("s1",
		models.Question{Index: 1, StartTs: 0, EndTs: 30},
		models.Question{Index: 2, StartTs: 30, EndTs: 30},
		models.Question{Index: 3, StartTs: 60, EndTs: 90},
	))

	require.NoError(t, p.ProcessSession(context.Background(), "s1"))

	require.Len(t, events.events, 3)
	assert.Equal(t, notify.EventQuestionProcessed, events.events[0].Type)
	assert.Equal(t, notify.EventProcessingError, events.events[1].Type)
	assert.Equal(t, 2, events.events[1].QuestionIndex)
	assert.Contains(t, events.events[1].Error, "segment extraction failed")
	assert.Equal(t, notify.EventQuestionProcessed, events.events[2].Type)

	assert.Equal(t, "answer from 60 to 90", results.saved[3].Transcript)
	assert.Len(t, results.saved[3].Vector, 16+6)
	require.NotNil(t, results.saved[3].Feedback)
	assert.NotContains(t, results.saved, 2, "failed extraction saves nothing")
	assert.Equal(t, []string{"s1"}, fs.processed)

	for _, f := range x.made {
		assert.NoFileExists(t, f)
	}
}

func TestProcessSessionSeedsBodyLanguageByRange(t *testing.T) {
	q := models.Question{Index: 1, StartTs: 0, EndTs: 10}
	audio := recorded("s1", q)
	audio.MediaPath = "/data/rec.wav"
	p, _, x, _, results := newPool(t, audio)
	require.NoError(t, p.ProcessSession(context.Background(), "s1"))
	first := *results.saved[1].BodyLanguage

	require.NoError(t, p.ProcessSession(context.Background(), "s1"))
	assert.Equal(t, first, *results.saved[1].BodyLanguage)
	assert.Empty(t, x.videos, "audio-only recordings get no video cut")
	assert.Empty(t, results.saved[1].Warnings)
}

func TestProcessSessionFeedsVideoSegmentToBodyLanguage(t *testing.T) {
	p, _, x, events, results := newPool(t, recorded("s1",
		models.Question{Index: 1, StartTs: 0, EndTs: 20},
		models.Question{Index: 2, StartTs: 20, EndTs: 45},
	))
	watcher := &clipWatcher{}
	p.Processor.Body = watcher

	require.NoError(t, p.ProcessSession(context.Background(), "s1"))

	require.Len(t, events.events, 2)
	require.Len(t, x.videos, 2)
	assert.Equal(t, x.videos, watcher.sources)
	assert.Equal(t, []bool{true, true}, watcher.present)
	for _, v := range x.videos {
		assert.True(t, strings.HasSuffix(v, ".mp4"))
		assert.NoFileExists(t, v)
	}
	assert.Equal(t, "answer from 20 to 45", results.saved[2].Transcript)
}

func TestProcessSessionWithoutVideoStreamFallsBackToSeed(t *testing.T) {
	q := models.Question{Index: 1, StartTs: 5, EndTs: 15}
	p, _, x, events, results := newPool(t, recorded("s1", q))
	x.failVideo = true
	watcher := &clipWatcher{}
	p.Processor.Body = watcher

	require.NoError(t, p.ProcessSession(context.Background(), "s1"))

	require.Len(t, events.events, 1)
	assert.Equal(t, notify.EventQuestionProcessed, events.events[0].Type)
	assert.Equal(t, []string{"/data/rec.mp4#5.000-15.000"}, watcher.sources)
	require.Len(t, results.saved[1].Warnings, 1)
	assert.Contains(t, results.saved[1].Warnings[0], "video segment unavailable")
}

func TestProcessSessionRejectsStreamingAndUnknown(t *testing.T) {
	p, fs, _, events, _ := newPool(t, &models.Session{SessionID: "live", MediaPath: models.StreamingMediaPath, Questions: []models.Question{{Index: 1}}})

	assert.Error(t, p.ProcessSession(context.Background(), "live"))
	require.Len(t, events.events, 1)
	assert.Equal(t, notify.EventProcessingError, events.events[0].Type)
	assert.Empty(t, fs.processed)

	err := p.ProcessSession(context.Background(), "ghost")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestEnqueueAndHandleMessage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	id, err := Enqueue(ctx, rdb, "", "s1")
	require.NoError(t, err)

	msgs, err := rdb.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "s1", msgs[0].Values["session_id"])

	p, fs, _, _, _ := newPool(t, recorded("s1", models.Question{Index: 1, StartTs: 0, EndTs: 5}))
	require.NoError(t, p.defaults())
	p.handleMsg(ctx, msgs[0])
	p.handleMsg(ctx, redis.XMessage{ID: "0-1", Values: map[string]any{}})
	assert.Equal(t, []string{"s1"}, fs.processed)
}

func pendingIDs(t *testing.T, rdb *redis.Client) []string {
	t.Helper()
	pending, err := rdb.XPendingExt(context.Background(), &redis.XPendingExtArgs{
		Stream: DefaultStream, Group: DefaultGroup, Start: "-", End: "+", Count: 10,
	}).Result()
	require.NoError(t, err)
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestTransientFailureLeavesJobPendingUntilReclaimed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	p, fs, _, _, _ := newPool(t, recorded("s1", models.Question{Index: 1, StartTs: 0, EndTs: 5}))
	p.Redis = rdb
	require.NoError(t, p.defaults())
	require.NoError(t, rdb.XGroupCreateMkStream(ctx, DefaultStream, DefaultGroup, "0").Err())

	id, err := Enqueue(ctx, rdb, "", "s1")
	require.NoError(t, err)

	fs.getErr = utils.E(utils.CodeInternal, "fake.Get", "mongo unavailable", errors.New("connection reset"))
	require.NoError(t, p.poll(ctx, "c-1", 10*time.Millisecond))
	assert.Empty(t, fs.processed)
	assert.Equal(t, []string{id}, pendingIDs(t, rdb))

	fs.getErr = nil
	p.reclaim(ctx, "c-2", 0)
	assert.Equal(t, []string{"s1"}, fs.processed)
	assert.Empty(t, pendingIDs(t, rdb))
}

func TestPermanentFailuresAreAcked(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	p, _, _, _, _ := newPool(t, &models.Session{SessionID: "live", MediaPath: models.StreamingMediaPath, Questions: []models.Question{{Index: 1}}})
	p.Redis = rdb
	require.NoError(t, p.defaults())
	require.NoError(t, rdb.XGroupCreateMkStream(ctx, DefaultStream, DefaultGroup, "0").Err())

	for _, sid := range []string{"ghost", "live"} {
		_, err := Enqueue(ctx, rdb, "", sid)
		require.NoError(t, err)
		require.NoError(t, p.poll(ctx, "c-1", 10*time.Millisecond))
	}
	assert.Empty(t, pendingIDs(t, rdb))
}

func TestHandleMsgAckDecision(t *testing.T) {
	p, fs, _, _, _ := newPool(t, recorded("s1", models.Question{Index: 1, StartTs: 0, EndTs: 5}))
	require.NoError(t, p.defaults())
	ctx := context.Background()

	assert.True(t, p.handleMsg(ctx, redis.XMessage{ID: "1-0", Values: map[string]any{}}))
	assert.True(t, p.handleMsg(ctx, redis.XMessage{ID: "2-0", Values: map[string]any{"session_id": "ghost"}}))

	fs.getErr = errors.New("server selection timeout")
	assert.False(t, p.handleMsg(ctx, redis.XMessage{ID: "3-0", Values: map[string]any{"session_id": "s1"}}))

	fs.getErr = nil
	assert.True(t, p.handleMsg(ctx, redis.XMessage{ID: "4-0", Values: map[string]any{"session_id": "s1"}}))

	assert.False(t, p.exhausted(p.MaxDeliveries))
	assert.True(t, p.exhausted(p.MaxDeliveries+1))
}

func TestStartNeedsDependencies(t *testing.T) {
	assert.Error(t, (&SessionWorkerPool{}).Start(context.Background()))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	assert.Error(t, (&SessionWorkerPool{Redis: rdb}).Start(context.Background()))

	p, _, _, _, _ := newPool(t)
	p.Redis = rdb
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Start(ctx))
	assert.Equal(t, DefaultStream, p.Stream)
	assert.Equal(t, DefaultGroup, p.Group)
}
