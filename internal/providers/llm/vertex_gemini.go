package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

// ErrBlocked is returned when Gemini stops a candidate for safety reasons.
var ErrBlocked = errors.New("gemini blocked the answer")

// VertexGemini streams answers from a Gemini model on Vertex AI. Feedback,
// mind map and grading prompts all ask for a JSON object, so the model is
// put in JSON response mode.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	m.SetTemperature(0.3)
	m.SetMaxOutputTokens(2048)
	m.ResponseMIMEType = "application/json"
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, text := range candidateText(resp) {
				select {
				case out <- text:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if blocked(resp) {
				errs <- ErrBlocked
				return
			}
		}
	}()

	return out, errs
}

func candidateText(resp *vertexgenai.GenerateContentResponse) []string {
	var out []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && t != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}

func blocked(resp *vertexgenai.GenerateContentResponse) bool {
	for _, cand := range resp.Candidates {
		if cand.FinishReason == vertexgenai.FinishReasonSafety {
			return true
		}
	}
	return false
}
