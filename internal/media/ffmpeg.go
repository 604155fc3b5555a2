// Package media wraps the ffmpeg binary for the audio conversions used by
// realtime takes and batch recordings.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	SampleRate = 16000
	Channels   = 1
)

// Transcoder turns one compressed chunk into mono 16 kHz PCM.
type Transcoder interface {
	ToPCM(ctx context.Context, src, dst string) error
}

// Concatenator joins PCM or compressed inputs, in order, into one PCM file.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, dst string) error
}

// SegmentExtractor cuts [start,end) seconds out of a recording. Extract
// writes PCM audio, ExtractVideo a stream copy without audio.
type SegmentExtractor interface {
	Extract(ctx context.Context, src, dst string, start, end float64) error
	ExtractVideo(ctx context.Context, src, dst string, start, end float64) error
}

var audioOnly = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".aac": true,
	".ogg": true, ".oga": true, ".opus": true, ".flac": true,
}

// HasVideo reports whether path may carry a video stream, judged by extension.
func HasVideo(path string) bool {
	return !audioOnly[strings.ToLower(filepath.Ext(path))]
}

type FFmpeg struct {
	Bin string
}

func NewFFmpeg(bin string) *FFmpeg {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{Bin: bin}
}

// Available reports whether the binary resolves on PATH.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Bin)
	return err == nil
}

func (f *FFmpeg) ToPCM(ctx context.Context, src, dst string) error {
	return f.run(ctx, transcodeArgs(src, dst))
}

func (f *FFmpeg) Concat(ctx context.Context, inputs []string, dst string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	return f.run(ctx, concatArgs(inputs, dst))
}

func (f *FFmpeg) Extract(ctx context.Context, src, dst string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("extract: empty range %.2f-%.2f", start, end)
	}
	return f.run(ctx, segmentArgs(src, dst, start, end))
}

func (f *FFmpeg) ExtractVideo(ctx context.Context, src, dst string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("extract video: empty range %.2f-%.2f", start, end)
	}
	return f.run(ctx, videoSegmentArgs(src, dst, start, end))
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 400))
	}
	return nil
}

func pcmOutput(dst string) []string {
	return []string{
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		dst,
	}
}

func transcodeArgs(src, dst string) []string {
	args := []string{"-y", "-loglevel", "error", "-i", src, "-vn"}
	return append(args, pcmOutput(dst)...)
}

func concatArgs(inputs []string, dst string) []string {
	args := []string{"-y", "-loglevel", "error"}
	var filter strings.Builder
	for i, in := range inputs {
		args = append(args, "-i", in)
		fmt.Fprintf(&filter, "[%d:a]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=0:a=1[out]", len(inputs))
	args = append(args, "-filter_complex", filter.String(), "-map", "[out]")
	return append(args, pcmOutput(dst)...)
}

func segmentArgs(src, dst string, start, end float64) []string {
	args := []string{
		"-y", "-loglevel", "error",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-to", strconv.FormatFloat(end, 'f', 3, 64),
		"-i", src, "-vn",
	}
	return append(args, pcmOutput(dst)...)
}

func videoSegmentArgs(src, dst string, start, end float64) []string {
	return []string{
		"-y", "-loglevel", "error",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-to", strconv.FormatFloat(end, 'f', 3, 64),
		"-i", src, "-an", "-c", "copy", dst,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
