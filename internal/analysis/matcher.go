package analysis

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Matcher picks the framework closest to an answer. With an Embedder it ranks
// by cosine similarity; without one, or when embedding fails, by shared terms.
// A best score at or below Threshold yields the catalog's first framework.
type Matcher struct {
	Catalog   *Catalog
	Embedder  Embedder
	Threshold float64
	Log       *logrus.Logger

	WarmTimeout time.Duration

	mu      sync.Mutex
	vectors map[string][]float32
}

func NewMatcher(c *Catalog, e Embedder, log *logrus.Logger) *Matcher {
	if log == nil {
		log = logrus.New()
	}
	return &Matcher{Catalog: c, Embedder: e, Threshold: 0.3, WarmTimeout: 30 * time.Second, Log: log}
}

// Warm embeds every framework. Vectors are kept only once all of them succeed;
// a failed warm-up is retried by the next call. Cancelling ctx does not abort
// a warm-up in progress, only WarmTimeout bounds it.
func (m *Matcher) Warm(ctx context.Context) error {
	_, err := m.frameworkVectors(ctx)
	return err
}

func (m *Matcher) frameworkVectors(ctx context.Context) (map[string][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors != nil || m.Embedder == nil {
		return m.vectors, nil
	}

	ctx = context.WithoutCancel(ctx)
	if m.WarmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.WarmTimeout)
		defer cancel()
	}

	vecs := make(map[string][]float32, len(m.Catalog.All()))
	for _, f := range m.Catalog.All() {
		v, err := m.Embedder.Embed(ctx, f.EmbeddingText())
		if err != nil {
			return nil, err
		}
		vecs[f.ID] = v
	}
	m.vectors = vecs
	return vecs, nil
}

func (m *Matcher) Match(ctx context.Context, transcript string) models.FrameworkMatch {
	best, score := m.byEmbedding(ctx, transcript)
	if best == nil {
		best, score = m.byTerms(transcript)
	}
	if best == nil || score <= m.Threshold {
		first := m.Catalog.First()
		return models.FrameworkMatch{ID: first.ID, Name: first.Name, Score: 0.5, Category: first.category()}
	}
	return models.FrameworkMatch{ID: best.ID, Name: best.Name, Score: score, Category: best.category()}
}

func (m *Matcher) byEmbedding(ctx context.Context, transcript string) (*Framework, float64) {
	if m.Embedder == nil {
		return nil, 0
	}
	vectors, err := m.frameworkVectors(ctx)
	if err != nil {
		m.Log.WithError(err).Warn("framework embeddings unavailable, matching by terms")
		return nil, 0
	}
	q, err := m.Embedder.Embed(ctx, "Candidate consulting case answer: "+transcript)
	if err != nil {
		m.Log.WithError(err).Warn("answer embedding failed, matching by terms")
		return nil, 0
	}

	var best *Framework
	bestScore := math.Inf(-1)
	for i := range m.Catalog.frameworks {
		f := &m.Catalog.frameworks[i]
		s := Cosine(q, vectors[f.ID])
		if s > bestScore {
			best, bestScore = f, s
		}
	}
	return best, bestScore
}

// byTerms scores 0.2 per distinct framework term found in the answer, capped at 1.
func (m *Matcher) byTerms(transcript string) (*Framework, float64) {
	answer := termSet(transcript)
	var best *Framework
	bestScore := 0.0
	for i := range m.Catalog.frameworks {
		f := &m.Catalog.frameworks[i]
		vocab := map[string]bool{}
		for _, t := range f.Tags {
			for _, w := range terms(t) {
				vocab[w] = true
			}
		}
		for _, n := range f.Nodes() {
			for _, w := range terms(n) {
				vocab[w] = true
			}
		}
		hits := 0
		for w := range vocab {
			if answer[w] {
				hits++
			}
		}
		s := math.Min(1, float64(hits)*0.2)
		if s > bestScore {
			best, bestScore = f, s
		}
	}
	return best, bestScore
}

func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
