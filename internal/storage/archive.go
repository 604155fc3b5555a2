package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/utils"
)

// RecordingArchiver uploads combined take audio to
// <Prefix>/<session>/q<index>-t<take><ext>.
type RecordingArchiver struct {
	Uploader Uploader
	Prefix   string
}

func NewRecordingArchiver(u Uploader) *RecordingArchiver {
	return &RecordingArchiver{Uploader: u, Prefix: "recordings"}
}

func ObjectName(prefix string, key realtime.Key, take uint64, ext string) string {
	return path.Join(prefix, key.SessionID, fmt.Sprintf("q%d-t%d%s", key.QuestionIndex, take, ext))
}

func contentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

func (a *RecordingArchiver) Archive(ctx context.Context, key realtime.Key, take uint64, handle string) (string, error) {
	const op = "RecordingArchiver.Archive"

	f, err := os.Open(handle)
	if err != nil {
		return "", utils.E(utils.CodeNotFound, op, "recording file missing", err)
	}
	defer f.Close()

	ext := filepath.Ext(handle)
	url, err := a.Uploader.Upload(ctx, ObjectName(a.Prefix, key, take, ext), contentType(ext), f)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "upload failed", err)
	}
	return url, nil
}
