package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/models"
)

func TestRedisSinkAndFeedRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed := NewRedisFeed(rdb)
	stream, err := feed.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer stream.Close()

	sink := NewRedisSink(rdb)
	result := &models.ProcessedResult{QuestionIndex: 2, Transcript: "we size the market", Status: models.StatusCompleted}
	require.NoError(t, sink.Deliver(ctx, QuestionProcessed("sess-1", 7, result)))
	require.NoError(t, sink.Deliver(ctx, ProcessingStarted("other", 1, 1)))

	select {
	case ev := <-stream.Events():
		assert.Equal(t, EventQuestionProcessed, ev.Type)
		assert.Equal(t, 2, ev.QuestionIndex)
		assert.Equal(t, uint64(7), ev.Take)
		require.NotNil(t, ev.Result)
		assert.Equal(t, "we size the market", ev.Result.Transcript)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "session:abc:events", Channel("abc"))
}
