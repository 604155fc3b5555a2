// Package bodylang provides body-language analyzers.
package bodylang

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/yoockh/casecoach/internal/models"
)

var ErrNoSource = errors.New("body language source is empty")

type band struct{ lo, hi float64 }

// ranges per feature, in BodyLanguage.Vector order
var bands = [6]band{
	{0.4, 0.9},  // warmth
	{0.5, 0.95}, // competence
	{0.3, 0.8},  // affect
	{0.4, 0.85}, // eye contact
	{0.2, 0.7},  // gesture intensity
	{0.6, 0.95}, // posture stability
}

// Seeded stands in for a computer-vision model. It maps the source string to
// bounded, repeatable features and never looks at the media itself.
type Seeded struct{}

func (Seeded) Analyze(ctx context.Context, source string) (models.BodyLanguage, error) {
	if err := ctx.Err(); err != nil {
		return models.BodyLanguage{}, err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return models.BodyLanguage{}, ErrNoSource
	}

	var v [6]float64
	for i := range v {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(source))
		u := float64(h.Sum64()>>11) / float64(1<<53)
		v[i] = bands[i].lo + u*(bands[i].hi-bands[i].lo)
	}
	return models.BodyLanguage{
		Warmth:           v[0],
		Competence:       v[1],
		Affect:           v[2],
		EyeContactRatio:  v[3],
		GestureIntensity: v[4],
		PostureStability: v[5],
	}, nil
}
