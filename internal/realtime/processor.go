package realtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
)

type Transcriber interface {
	Transcribe(ctx context.Context, handle string) (string, error)
}

// BodyAnalyzer reads a video handle, or any other string used as a seed.
type BodyAnalyzer interface {
	Analyze(ctx context.Context, source string) (models.BodyLanguage, error)
}

type VectorBuilder interface {
	Build(ctx context.Context, text string, bl models.BodyLanguage) ([]float32, error)
}

type FeedbackGenerator interface {
	Generate(ctx context.Context, transcript string, bl models.BodyLanguage, questionIndex int) (*models.Feedback, error)
}

// Input is everything one processing run sees.
type Input struct {
	QuestionIndex  int
	Audio          string
	Video          string
	TranscriptHint string
	// Seed feeds the body-language analyzer when there is no video. It wins
	// over Audio so that a recording segment seeds the same way every run.
	Seed string
}

// Processor turns combined media into a ProcessedResult. Collaborator calls
// are bounded by StageTimeout each.
type Processor struct {
	STT          Transcriber
	Body         BodyAnalyzer
	Vectors      VectorBuilder
	Feedback     FeedbackGenerator
	StageTimeout time.Duration
	Log          *logrus.Logger
}

func PlaceholderTranscript(questionIndex int) string {
	return fmt.Sprintf("[Question %d response]", questionIndex)
}

// Process never returns nil. On failure Status is error and every field
// resolved before the failure is kept.
func (p *Processor) Process(ctx context.Context, in Input) (res *models.ProcessedResult) {
	res = &models.ProcessedResult{QuestionIndex: in.QuestionIndex, Status: models.StatusProcessing}
	log := p.logger().WithField("question_index", in.QuestionIndex)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("processor panic: %v", r)
			res.Status = models.StatusError
			res.ErrorMessage = fmt.Sprintf("internal error: %v", r)
		}
	}()

	// transcript
	if hint := strings.TrimSpace(in.TranscriptHint); hint != "" {
		res.Transcript = hint
	} else if in.Audio != "" && p.STT != nil {
		text, err := callStage(ctx, p.StageTimeout, func(ctx context.Context) (string, error) {
			return p.STT.Transcribe(ctx, in.Audio)
		})
		if err != nil {
			log.WithError(err).Warn("transcription failed")
			res.Warnings = append(res.Warnings, "transcription failed: "+err.Error())
		} else {
			res.Transcript = strings.TrimSpace(text)
		}
	}

	// body language
	if p.Body == nil {
		return fail(res, "body language", errors.New("no analyzer configured"))
	}
	source := firstNonEmpty(in.Video, in.Seed, in.Audio, fmt.Sprintf("question-%d", in.QuestionIndex))
	bl, err := callStage(ctx, p.StageTimeout, func(ctx context.Context) (models.BodyLanguage, error) {
		return p.Body.Analyze(ctx, source)
	})
	if err != nil {
		return fail(res, "body language", err)
	}
	res.BodyLanguage = &bl

	// vector
	if p.Vectors == nil {
		return fail(res, "vector", errors.New("no vector builder configured"))
	}
	text := res.Transcript
	if text == "" {
		text = PlaceholderTranscript(in.QuestionIndex)
	}
	vec, err := callStage(ctx, p.StageTimeout, func(ctx context.Context) ([]float32, error) {
		return p.Vectors.Build(ctx, text, bl)
	})
	if err != nil {
		return fail(res, "vector", err)
	}
	res.Vector = vec

	// feedback
	if res.Transcript != "" {
		var fb *models.Feedback
		if p.Feedback != nil {
			fb, err = callStage(ctx, p.StageTimeout, func(ctx context.Context) (*models.Feedback, error) {
				return p.Feedback.Generate(ctx, res.Transcript, bl, in.QuestionIndex)
			})
			if err != nil {
				log.WithError(err).Warn("feedback generation failed, using fallback")
				res.Warnings = append(res.Warnings, "feedback generation failed")
			}
		}
		if fb == nil {
			fb = FallbackFeedback()
		}
		res.Feedback = fb
	}

	res.Status = models.StatusCompleted
	return res
}

func (p *Processor) logger() *logrus.Logger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

// FallbackFeedback is the renderable record used when no generator answered.
func FallbackFeedback() *models.Feedback {
	return &models.Feedback{
		Strengths:    []string{"Completed the response"},
		Improvements: []string{"Add more structure to the answer"},
		OverallScore: 50,
		Narrative:    "Automatic feedback was unavailable for this answer.",
		Suggestions:  []string{"Practice with a framework-driven approach"},
	}
}

func fail(res *models.ProcessedResult, stage string, err error) *models.ProcessedResult {
	res.Status = models.StatusError
	res.ErrorMessage = fmt.Sprintf("%s: %v", stage, err)
	return res
}

func callStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(sctx)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
