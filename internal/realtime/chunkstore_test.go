package realtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/logger"
	"github.com/yoockh/casecoach/internal/utils"
)

func TestStageAudioTranscodes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChunkStore(dir, copyTranscoder{}, logger.Discard())
	require.NoError(t, err)

	h, err := s.StageAudio(context.Background(), q1, 3, []byte("opus"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(h, ".wav"))
	assert.True(t, strings.HasPrefix(filepath.Base(h), "sess-1-q1-chunk3-"))

	b, err := os.ReadFile(h)
	require.NoError(t, err)
	assert.Equal(t, "opus", string(b))

	raw, _ := filepath.Glob(filepath.Join(dir, "*.webm"))
	assert.Empty(t, raw)
}

func TestStageAudioFallsBackToRawOnTranscodeFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChunkStore(dir, copyTranscoder{fail: true}, logger.Discard())
	require.NoError(t, err)

	h, err := s.StageAudio(context.Background(), q1, 0, []byte("opus"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(h, ".webm"))
	_, err = os.Stat(h)
	assert.NoError(t, err)

	wav, _ := filepath.Glob(filepath.Join(dir, "*.wav"))
	assert.Empty(t, wav)
}

func TestStagedHandlesAreUniquePerWrite(t *testing.T) {
	s, err := NewChunkStore(t.TempDir(), nil, logger.Discard())
	require.NoError(t, err)

	a, err := s.StageAudio(context.Background(), q1, 0, []byte("x"))
	require.NoError(t, err)
	b, err := s.StageAudio(context.Background(), q1, 0, []byte("y"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	v, err := s.StageVideo(context.Background(), q1, 0, []byte("frames"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(v, "-video.webm"))
}

func TestStageFailsWhenDirectoryIsGone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chunks")
	s, err := NewChunkStore(dir, nil, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = s.StageAudio(context.Background(), q1, 0, []byte("x"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))

	_, err = s.StageVideo(context.Background(), q1, 0, []byte("x"))
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestDiscardIsBestEffort(t *testing.T) {
	s, err := NewChunkStore(t.TempDir(), nil, logger.Discard())
	require.NoError(t, err)

	a, _ := s.StageAudio(context.Background(), q1, 0, []byte("x"))
	b, _ := s.StageVideo(context.Background(), q1, 1, []byte("y"))

	n := s.Discard("", filepath.Join(s.Dir(), "never-existed.wav"), a, a, b)
	assert.Equal(t, 2, n)

	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err))
}
