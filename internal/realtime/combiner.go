package realtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/media"
	"github.com/yoockh/casecoach/internal/utils"
)

type CombineMode string

const (
	// CombineConcat joins every audio chunk in chunk index order.
	CombineConcat CombineMode = "concat"
	// CombineLast keeps only the highest chunk index (legacy behavior).
	CombineLast CombineMode = "last"
)

func ParseCombineMode(s string) CombineMode {
	if CombineMode(strings.ToLower(strings.TrimSpace(s))) == CombineLast {
		return CombineLast
	}
	return CombineConcat
}

// Combined is the single audio input for a take. Handle is empty when the
// take had no audio.
type Combined struct {
	Handle string
	// Derived is true when Handle is a new file the caller must discard.
	Derived  bool
	Degraded bool
	Warning  string
}

func (c Combined) Empty() bool { return c.Handle == "" }

type Combiner struct {
	mode   CombineMode
	concat media.Concatenator
	dir    string
	log    *logrus.Logger
}

func NewCombiner(mode CombineMode, concat media.Concatenator, dir string, log *logrus.Logger) *Combiner {
	if mode == "" {
		mode = CombineConcat
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Combiner{mode: mode, concat: concat, dir: dir, log: log}
}

func (c *Combiner) Mode() CombineMode { return c.mode }

// CombineAudio expects handles ordered by chunk index.
func (c *Combiner) CombineAudio(ctx context.Context, key Key, handles []string) (Combined, error) {
	const op = "Combiner.CombineAudio"

	hs := nonEmpty(handles)
	switch {
	case len(hs) == 0:
		return Combined{}, nil
	case len(hs) == 1:
		return Combined{Handle: hs[0]}, nil
	case c.mode == CombineLast:
		return Combined{Handle: hs[len(hs)-1]}, nil
	case c.concat == nil:
		return Combined{
			Handle:   hs[len(hs)-1],
			Degraded: true,
			Warning:  "audio concatenation unavailable, used last chunk only",
		}, nil
	}

	dst := filepath.Join(c.dir, fmt.Sprintf("%s-combined-%s.wav", key, uuid.NewString()[:8]))
	if err := c.concat.Concat(ctx, hs, dst); err != nil {
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return Combined{}, utils.E(utils.CodeTimeout, op, "audio combine interrupted", ctx.Err())
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"session_id":     key.SessionID,
			"question_index": key.QuestionIndex,
			"chunks":         len(hs),
		}).Warn("audio concat failed, falling back to last chunk")
		return Combined{
			Handle:   hs[len(hs)-1],
			Degraded: true,
			Warning:  fmt.Sprintf("audio concatenation failed, used last of %d chunks", len(hs)),
		}, nil
	}
	return Combined{Handle: dst, Derived: true}, nil
}

// CombineVideo picks the highest chunk index; video is never concatenated.
func (c *Combiner) CombineVideo(handles []string) string {
	hs := nonEmpty(handles)
	if len(hs) == 0 {
		return ""
	}
	return hs[len(hs)-1]
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, h := range in {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
