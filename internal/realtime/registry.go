// Package realtime accepts streamed answer chunks, tracks each question take
// and runs the one-shot analysis when the final chunk arrives.
package realtime

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/notify"
)

// Key addresses one question of one session.
type Key struct {
	SessionID     string
	QuestionIndex int
}

func (k Key) String() string {
	return fmt.Sprintf("%s-q%d", k.SessionID, k.QuestionIndex)
}

type Phase string

const (
	PhaseAccumulating Phase = "accumulating"
	PhaseProcessing   Phase = "processing"
)

// Chunk is what the registry keeps about one accepted chunk: storage handles only.
type Chunk struct {
	Index      int
	Audio      string
	Video      string
	CapturedAt float64
}

type ChunkRef struct {
	Index  int    `json:"chunk_index"`
	Handle string `json:"handle"`
}

// Snapshot is a copy of a take's state; mutating it does not touch the registry.
type Snapshot struct {
	Key        Key                     `json:"-"`
	Take       uint64                  `json:"take"`
	Phase      Phase                   `json:"phase"`
	Audio      []ChunkRef              `json:"audio"`
	Video      []ChunkRef              `json:"video"`
	Late       []string                `json:"late,omitempty"`
	LastResult *models.ProcessedResult `json:"last_result,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func (s Snapshot) AudioHandles() []string { return handlesOf(s.Audio) }
func (s Snapshot) VideoHandles() []string { return handlesOf(s.Video) }

// Handles lists every file the take owns, including chunks that arrived while it was processing.
func (s Snapshot) Handles() []string {
	out := make([]string, 0, len(s.Audio)+len(s.Video)+len(s.Late))
	out = append(out, s.AudioHandles()...)
	out = append(out, s.VideoHandles()...)
	return append(out, s.Late...)
}

// Recorded reports what RecordChunk did.
type Recorded struct {
	Take uint64
	// Created is true when this chunk opened a new take.
	Created bool
	// Processing is true when the chunk landed on a take already being processed;
	// it is kept for cleanup only and is not part of that run.
	Processing bool
	// Replaced holds handles overwritten by a resent chunk index. They belong
	// to no take anymore and can be discarded by the caller.
	Replaced []string
}

type questionState struct {
	take       uint64
	audio      map[int]string
	video      map[int]string
	late       []string
	processing bool
	lastResult *models.ProcessedResult
	startedAt  time.Time
	updatedAt  time.Time
}

func (st *questionState) snapshot(key Key) Snapshot {
	phase := PhaseAccumulating
	if st.processing {
		phase = PhaseProcessing
	}
	return Snapshot{
		Key:        key,
		Take:       st.take,
		Phase:      phase,
		Audio:      ordered(st.audio),
		Video:      ordered(st.video),
		Late:       append([]string(nil), st.late...),
		LastResult: st.lastResult,
		StartedAt:  st.startedAt,
		UpdatedAt:  st.updatedAt,
	}
}

// Registry owns the live state of every in-flight take. All mutation goes
// through its methods and is serialized by one mutex, so the processing
// check-and-set is atomic.
type Registry struct {
	mu     sync.Mutex
	states map[Key]*questionState
	takes  uint64
	events notify.Publisher
	now    func() time.Time
}

func NewRegistry(events notify.Publisher) *Registry {
	if events == nil {
		events = noopPublisher{}
	}
	return &Registry{
		states: map[Key]*questionState{},
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// caller holds r.mu
func (r *Registry) lookup(key Key) (*questionState, bool) {
	st, ok := r.states[key]
	if ok {
		return st, false
	}
	r.takes++
	now := r.now()
	st = &questionState{
		take:      r.takes,
		audio:     map[int]string{},
		video:     map[int]string{},
		startedAt: now,
		updatedAt: now,
	}
	r.states[key] = st
	return st, true
}

func (r *Registry) GetOrCreate(key Key) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, _ := r.lookup(key)
	return st.snapshot(key)
}

// RecordChunk stores the chunk's handles under its index, last writer wins,
// and emits one chunk-received event while still holding the lock so events
// follow acceptance order.
func (r *Registry) RecordChunk(key Key, c Chunk) Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, created := r.lookup(key)
	st.updatedAt = r.now()
	rec := Recorded{Take: st.take, Created: created, Processing: st.processing}

	if st.processing {
		for _, h := range []string{c.Audio, c.Video} {
			if h != "" {
				st.late = append(st.late, h)
			}
		}
	} else {
		if c.Audio != "" {
			if old, ok := st.audio[c.Index]; ok && old != c.Audio {
				rec.Replaced = append(rec.Replaced, old)
			}
			st.audio[c.Index] = c.Audio
		}
		if c.Video != "" {
			if old, ok := st.video[c.Index]; ok && old != c.Video {
				rec.Replaced = append(rec.Replaced, old)
			}
			st.video[c.Index] = c.Video
		}
	}

	r.events.Publish(notify.ChunkReceived(key.SessionID, key.QuestionIndex, c.Index, st.take, c.CapturedAt))
	return rec
}

// TryBeginProcessing flips the take into processing and emits
// processing-started. It returns false when the key is absent or a run is
// already in flight; the caller must not start another run in that case.
func (r *Registry) TryBeginProcessing(key Key) (*Permit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[key]
	if !ok || st.processing {
		return nil, false
	}
	st.processing = true
	st.updatedAt = r.now()
	r.events.Publish(notify.ProcessingStarted(key.SessionID, key.QuestionIndex, st.take))
	return &Permit{
		Key:   key,
		Take:  st.take,
		Audio: ordered(st.audio),
		Video: ordered(st.video),
		reg:   r,
	}, true
}

// CompleteProcessing stores the result, clears the processing flag and evicts
// the key. The evicted state is returned; nothing can read it afterwards.
func (r *Registry) CompleteProcessing(key Key, result *models.ProcessedResult) (Snapshot, bool) {
	return r.complete(key, 0, result)
}

func (r *Registry) complete(key Key, take uint64, result *models.ProcessedResult) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[key]
	if !ok || !st.processing || (take != 0 && st.take != take) {
		return Snapshot{}, false
	}
	st.lastResult = result
	st.processing = false
	st.updatedAt = r.now()
	snap := st.snapshot(key)
	delete(r.states, key)
	return snap, true
}

// SnapshotChunkPaths returns the audio and video handles ordered by chunk index.
func (r *Registry) SnapshotChunkPaths(key Key) (audio, video []string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[key]
	if !ok {
		return nil, nil, false
	}
	return handlesOf(ordered(st.audio)), handlesOf(ordered(st.video)), true
}

// Lookup returns a snapshot without creating state.
func (r *Registry) Lookup(key Key) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[key]
	if !ok {
		return Snapshot{}, false
	}
	return st.snapshot(key), true
}

// Active lists live takes ordered by session then question.
func (r *Registry) Active() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.states))
	for k, st := range r.states {
		out = append(out, st.snapshot(k))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.SessionID != out[j].Key.SessionID {
			return out[i].Key.SessionID < out[j].Key.SessionID
		}
		return out[i].Key.QuestionIndex < out[j].Key.QuestionIndex
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Sweep evicts accumulating takes that saw no chunk for idle. Processing
// takes are left alone; their permit evicts them.
func (r *Registry) Sweep(idle time.Duration) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	var out []Snapshot
	for k, st := range r.states {
		if st.processing || st.updatedAt.After(cutoff) {
			continue
		}
		out = append(out, st.snapshot(k))
		delete(r.states, k)
	}
	return out
}

// Permit is the right to run the one processing pass of a take.
// Release must be called exactly once; extra calls return the first outcome.
type Permit struct {
	Key   Key
	Take  uint64
	Audio []ChunkRef
	Video []ChunkRef

	reg     *Registry
	once    sync.Once
	evicted Snapshot
	ok      bool
}

func (p *Permit) AudioHandles() []string { return handlesOf(p.Audio) }
func (p *Permit) VideoHandles() []string { return handlesOf(p.Video) }

func (p *Permit) Release(result *models.ProcessedResult) (Snapshot, bool) {
	p.once.Do(func() {
		p.evicted, p.ok = p.reg.complete(p.Key, p.Take, result)
	})
	return p.evicted, p.ok
}

func ordered(m map[int]string) []ChunkRef {
	out := make([]ChunkRef, 0, len(m))
	for idx, h := range m {
		out = append(out, ChunkRef{Index: idx, Handle: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func handlesOf(refs []ChunkRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Handle)
	}
	return out
}

type noopPublisher struct{}

func (noopPublisher) Publish(notify.Event) {}
