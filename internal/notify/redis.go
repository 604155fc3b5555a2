package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Channel is the Pub/Sub channel carrying one session's events.
func Channel(sessionID string) string {
	return "session:" + sessionID + ":events"
}

type RedisSink struct {
	rdb *redis.Client
}

func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{rdb: rdb}
}

func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, Channel(ev.SessionID), b).Err()
}

// RedisFeed subscribes to events published by any instance through RedisSink.
type RedisFeed struct {
	rdb    *redis.Client
	buffer int
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb, buffer: 64}
}

func (f *RedisFeed) Subscribe(ctx context.Context, sessionID string) (Stream, error) {
	ps := f.rdb.Subscribe(ctx, Channel(sessionID))
	// wait for the subscription confirmation so no event published after
	// Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &redisStream{ps: ps, out: make(chan Event, f.buffer), done: make(chan struct{})}
	go s.pump(ctx)
	return s, nil
}

type redisStream struct {
	ps   *redis.PubSub
	out  chan Event
	done chan struct{}
	once sync.Once
}

func (s *redisStream) Events() <-chan Event { return s.out }

func (s *redisStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *redisStream) pump(ctx context.Context) {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}
