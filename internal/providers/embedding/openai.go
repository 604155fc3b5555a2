package embedding

import (
	"context"
	"errors"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI calls an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	cli        *openai.Client
	Model      openai.EmbeddingModel
	Dimensions int
	MaxChars   int
}

func NewOpenAI(apiKey, baseURL, model string, dims int) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &OpenAI{cli: openai.NewClientWithConfig(cfg), Model: m, Dimensions: dims, MaxChars: 8000}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.MaxChars > 0 && utf8.RuneCountInString(text) > o.MaxChars {
		text = string([]rune(text)[:o.MaxChars])
	}
	resp, err := o.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      o.Model,
		Input:      []string{text},
		Dimensions: o.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}
