package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	chunks []string
	err    error
}

func (s scripted) StreamAnswer(_ context.Context, _ string) (<-chan string, <-chan error) {
	out := make(chan string, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		out <- c
	}
	if s.err != nil {
		errs <- s.err
	}
	close(out)
	close(errs)
	return out, errs
}

func (scripted) Close() error { return nil }

func TestCompleteJoinsChunks(t *testing.T) {
	got, err := Complete(context.Background(), scripted{chunks: []string{" {\"a\":", "1}", "\n"}}, "p")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestCompleteErrors(t *testing.T) {
	boom := errors.New("quota")
	_, err := Complete(context.Background(), scripted{chunks: []string{"partial"}, err: boom}, "p")
	assert.ErrorIs(t, err, boom)

	_, err = Complete(context.Background(), scripted{}, "p")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestOpenAIChatStreamsFromCompatibleServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"stream":true`)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Use a ", "profit tree."} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	chat := NewOpenAIChat("test-key", srv.URL, "")
	got, err := Complete(context.Background(), chat, "how to approach falling profits?")
	require.NoError(t, err)
	assert.Equal(t, "Use a profit tree.", strings.TrimSpace(got))
}
