package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/openai/openai-go/v3"

	"taleweaver/pkg/inference"
)

type call struct {
	params *openai.ChatCompletionNewParams
	system string
	user   string
}

// fakeInferencer answers with respond(user) and records every call.
type fakeInferencer struct {
	mu      sync.Mutex
	calls   []call
	respond func(user string) (string, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{params: params, system: system, user: user})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.respond == nil {
		return "", inference.ErrEmptyCompletion
	}
	return f.respond(user)
}

func (f *fakeInferencer) Verify(_ context.Context, result string) (bool, error) {
	return result != "", nil
}

func (f *fakeInferencer) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// chunkText strips the user prefix added by AnalyzeChunk.
func chunkText(user string) string {
	return strings.TrimPrefix(user, extractUserPrefix)
}
