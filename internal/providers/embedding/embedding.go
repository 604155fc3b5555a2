// Package embedding turns answer text plus body-language features into the
// fixed-length vectors stored per question.
package embedding

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
)

const DefaultDim = 384

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hash derives a deterministic pseudo-embedding from the SHA-256 of the text.
// Values are in [-1,1]. Same text, same vector.
type Hash struct {
	Dim int
}

func (h Hash) Embed(_ context.Context, text string) ([]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultDim
	}
	sum := sha256.Sum256([]byte(text))
	out := make([]float32, dim)
	for i := range out {
		b1 := float64(sum[i%len(sum)])
		b2 := float64(sum[(i+1)%len(sum)])
		out[i] = float32((b1*256+b2)/65535*2 - 1)
	}
	return out, nil
}

// Builder implements the question vector: a text embedding of exactly Dim
// values followed by the six body-language features.
type Builder struct {
	Primary  Embedder
	Fallback Embedder
	Dim      int
	Log      *logrus.Logger
}

func NewBuilder(primary Embedder, dim int, log *logrus.Logger) *Builder {
	if dim <= 0 {
		dim = DefaultDim
	}
	if log == nil {
		log = logrus.New()
	}
	return &Builder{Primary: primary, Fallback: Hash{Dim: dim}, Dim: dim, Log: log}
}

func (b *Builder) Build(ctx context.Context, text string, bl models.BodyLanguage) ([]float32, error) {
	emb, err := b.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	emb = fit(emb, b.Dim)
	return append(emb, bl.Vector()...), nil
}

// Embed returns only the text part, sized to Dim.
func (b *Builder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := b.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return fit(emb, b.Dim), nil
}

func (b *Builder) embed(ctx context.Context, text string) ([]float32, error) {
	if b.Primary != nil {
		emb, err := b.Primary.Embed(ctx, text)
		if err == nil && len(emb) > 0 {
			return emb, nil
		}
		if err == nil {
			err = errors.New("empty embedding")
		}
		b.Log.WithError(err).Warn("primary embedder failed, using fallback")
	}
	if b.Fallback == nil {
		return nil, errors.New("no embedder available")
	}
	return b.Fallback.Embed(ctx, text)
}

func fit(v []float32, dim int) []float32 {
	if len(v) >= dim {
		return v[:dim:dim]
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
