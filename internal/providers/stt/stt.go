package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Encoding string

const (
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingWebmOpus Encoding = "WEBM_OPUS"
)

// Audio is one recording sent for recognition.
type Audio struct {
	Content  []byte
	Encoding Encoding
}

type Provider interface {
	Transcribe(ctx context.Context, audio Audio, language string) (text string, confidence float64, err error)
	Close() error
}

// EncodingFor guesses the encoding from a staged file's extension.
func EncodingFor(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm", ".ogg", ".opus":
		return EncodingWebmOpus
	default:
		return EncodingLinear16
	}
}

var ErrAudioTooLarge = errors.New("audio exceeds recognition limit")

// TranscriptionError is returned by FileTranscriber for any failure.
type TranscriptionError struct {
	Handle string
	Err    error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe %s: %v", filepath.Base(e.Handle), e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// FileTranscriber reads a staged media file and hands it to a Provider.
type FileTranscriber struct {
	Provider Provider
	Language string
	// MaxBytes caps synchronous recognition payloads; 0 means 10 MiB.
	MaxBytes int64
}

func (f *FileTranscriber) Transcribe(ctx context.Context, handle string) (string, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}

	st, err := os.Stat(handle)
	if err != nil {
		return "", &TranscriptionError{Handle: handle, Err: err}
	}
	if st.Size() > limit {
		return "", &TranscriptionError{Handle: handle, Err: ErrAudioTooLarge}
	}
	b, err := os.ReadFile(handle)
	if err != nil {
		return "", &TranscriptionError{Handle: handle, Err: err}
	}

	text, _, err := f.Provider.Transcribe(ctx, Audio{Content: b, Encoding: EncodingFor(handle)}, f.Language)
	if err != nil {
		return "", &TranscriptionError{Handle: handle, Err: err}
	}
	return strings.TrimSpace(text), nil
}

// NormalizeLanguage maps short language codes to BCP-47 tags.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "", "en", "en-US":
		return "en-US"
	case "id", "id-ID":
		return "id-ID"
	default:
		return v
	}
}
