package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/utils"
)

type memUploader struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memUploader) Upload(_ context.Context, name, ct string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects, m.types = map[string][]byte{}, map[string]string{}
	}
	m.objects[name] = buf.Bytes()
	m.types[name] = ct
	return "https://storage.googleapis.com/bucket/" + name, nil
}

func TestRecordingArchiver(t *testing.T) {
	src := filepath.Join(t.TempDir(), "s1-q2-combined.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))

	up := &memUploader{}
	a := NewRecordingArchiver(up)
	url, err := a.Archive(context.Background(), realtime.Key{SessionID: "s1", QuestionIndex: 2}, 3, src)
	require.NoError(t, err)

	assert.Equal(t, "https://storage.googleapis.com/bucket/recordings/s1/q2-t3.wav", url)
	assert.Equal(t, []byte("RIFF"), up.objects["recordings/s1/q2-t3.wav"])
	assert.Equal(t, "audio/wav", up.types["recordings/s1/q2-t3.wav"])
}

func TestRecordingArchiverErrors(t *testing.T) {
	key := realtime.Key{SessionID: "s1", QuestionIndex: 1}

	_, err := NewRecordingArchiver(&memUploader{}).Archive(context.Background(), key, 1, "/nonexistent/a.wav")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	src := filepath.Join(t.TempDir(), "a.webm")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	_, err = NewRecordingArchiver(&memUploader{err: errors.New("403")}).Archive(context.Background(), key, 1, src)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}
