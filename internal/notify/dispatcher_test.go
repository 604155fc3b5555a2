package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/logger"
)

type failingSink struct{}

func (failingSink) Deliver(context.Context, Event) error { return errors.New("down") }

func TestDispatcherPreservesPublishOrder(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(logger.Discard(), failingSink{}, rec)

	for i := 0; i < 50; i++ {
		d.Publish(ChunkReceived("s1", 0, i, 1, float64(i)))
	}
	d.Close()

	got := rec.Events()
	require.Len(t, got, 50)
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Seq)
		require.NotNil(t, ev.ChunkIndex)
		assert.Equal(t, i, *ev.ChunkIndex)
		assert.False(t, ev.EmittedAt.IsZero())
	}
}

func TestDispatcherConcurrentPublishersGetUniqueSeq(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(logger.Discard(), rec)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				d.Publish(ChunkReceived("s1", w, i, 1, 0))
			}
		}(w)
	}
	wg.Wait()
	d.Close()

	got := rec.Events()
	require.Len(t, got, 200)
	lastByQuestion := map[int]int{}
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Seq)
		prev, seen := lastByQuestion[ev.QuestionIndex]
		if seen {
			assert.Greater(t, *ev.ChunkIndex, prev)
		}
		lastByQuestion[ev.QuestionIndex] = *ev.ChunkIndex
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(logger.Discard(), rec)
	d.Publish(ProcessingStarted("s1", 2, 1))
	d.Close()
	d.Publish(ProcessingStarted("s1", 3, 1))

	assert.Len(t, rec.Events(), 1)
	assert.Len(t, rec.OfType(EventProcessingStarted), 1)
}

func TestHubDeliversPerSession(t *testing.T) {
	hub := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := hub.Subscribe(ctx, "a")
	require.NoError(t, err)
	b, err := hub.Subscribe(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("a"))

	require.NoError(t, hub.Deliver(ctx, ProcessingError("a", 1, 1, "boom")))

	select {
	case ev := <-a.Events():
		assert.Equal(t, EventProcessingError, ev.Type)
		assert.Equal(t, "boom", ev.Error)
	case <-time.After(time.Second):
		t.Fatal("no event for subscriber a")
	}
	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected event for b: %+v", ev)
	default:
	}

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 0, hub.Subscribers("a"))
	_, open := <-a.Events()
	assert.False(t, open)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(1)
	ctx := context.Background()
	s, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Deliver(ctx, ProcessingStarted("s", i, 1)))
	}
	assert.Equal(t, uint64(4), hub.Dropped())
}

func TestHubUnsubscribesOnContextCancel(t *testing.T) {
	hub := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := hub.Subscribe(ctx, "s")
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return hub.Subscribers("s") == 0 }, time.Second, 5*time.Millisecond)
}
