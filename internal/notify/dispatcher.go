package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher queues events in publish order and delivers them to every sink
// from a single goroutine. Publish never blocks, so it is safe to call while
// holding registry locks.
type Dispatcher struct {
	sinks   []Sink
	log     *logrus.Logger
	timeout time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	seq    uint64
	closed bool
	done   chan struct{}
}

func NewDispatcher(log *logrus.Logger, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	d := &Dispatcher{
		sinks:   sinks,
		log:     log,
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *Dispatcher) Publish(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.WithFields(logrus.Fields{
			"type":       ev.Type,
			"session_id": ev.SessionID,
		}).Warn("event dropped: dispatcher closed")
		return
	}
	d.seq++
	ev.Seq = d.seq
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now().UTC()
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

// Close stops accepting events and returns once everything queued was delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Broadcast()
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, ev := range batch {
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Deliver(ctx, ev)
		cancel()
		if err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"type":           ev.Type,
				"session_id":     ev.SessionID,
				"question_index": ev.QuestionIndex,
				"seq":            ev.Seq,
			}).Warn("event delivery failed")
		}
	}
}
