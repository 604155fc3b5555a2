package realtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/media"
	"github.com/yoockh/casecoach/internal/utils"
)

// ChunkStore stages chunk bytes as files under one directory. Every file name
// carries a random suffix, so a handle is never shared by two takes.
type ChunkStore struct {
	dir        string
	transcoder media.Transcoder
	log        *logrus.Logger
}

func NewChunkStore(dir string, transcoder media.Transcoder, log *logrus.Logger) (*ChunkStore, error) {
	const op = "ChunkStore.New"

	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "casecoach-chunks")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "cannot create chunk directory", err)
	}
	if log == nil {
		log = logrus.New()
	}
	return &ChunkStore{dir: dir, transcoder: transcoder, log: log}, nil
}

func (s *ChunkStore) Dir() string { return s.dir }

func (s *ChunkStore) path(key Key, chunkIndex int, suffix string) string {
	name := fmt.Sprintf("%s-chunk%d-%s%s", key, chunkIndex, uuid.NewString()[:8], suffix)
	return filepath.Join(s.dir, name)
}

// StageAudio writes the chunk and tries to convert it to PCM WAV. When the
// conversion fails the raw file handle is returned instead.
func (s *ChunkStore) StageAudio(ctx context.Context, key Key, chunkIndex int, data []byte) (string, error) {
	const op = "ChunkStore.StageAudio"

	raw := s.path(key, chunkIndex, ".webm")
	if err := os.WriteFile(raw, data, 0o600); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "could not stage audio chunk", err)
	}
	if s.transcoder == nil {
		return raw, nil
	}

	wav := strings.TrimSuffix(raw, ".webm") + ".wav"
	if err := s.transcoder.ToPCM(ctx, raw, wav); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"session_id":     key.SessionID,
			"question_index": key.QuestionIndex,
			"chunk_index":    chunkIndex,
		}).Warn("audio transcode failed, keeping original encoding")
		_ = os.Remove(wav)
		return raw, nil
	}
	_ = os.Remove(raw)
	return wav, nil
}

func (s *ChunkStore) StageVideo(_ context.Context, key Key, chunkIndex int, data []byte) (string, error) {
	const op = "ChunkStore.StageVideo"

	p := s.path(key, chunkIndex, "-video.webm")
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "could not stage video chunk", err)
	}
	return p, nil
}

// Discard removes the given files and returns how many were deleted.
// Missing files and failures are skipped.
func (s *ChunkStore) Discard(handles ...string) int {
	n := 0
	for _, h := range handles {
		if h == "" {
			continue
		}
		err := os.Remove(h)
		switch {
		case err == nil:
			n++
		case errors.Is(err, fs.ErrNotExist):
		default:
			s.log.WithError(err).WithField("handle", h).Debug("chunk discard failed")
		}
	}
	return n
}
