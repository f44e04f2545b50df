package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"golang.org/x/sync/errgroup"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/inference"
	"taleweaver/pkg/schema"
	"taleweaver/pkg/utils"
)

// Analyzer sends chunks to the model with the extraction prompt.
type Analyzer struct {
	Inferencer inference.Inferencer
	Model      string

	// Defaults applied when the request leaves a decoding parameter at zero.
	Temperature float64
	TopP        float64

	// MaxConcurrency caps simultaneous calls; <= 0 means one goroutine per chunk.
	MaxConcurrency int
	// PartialResults keeps successful chunks when others fail.
	PartialResults bool
	// StructuredOutput requests the strict JSON schema instead of a plain JSON object.
	StructuredOutput bool

	// Progress, when set, is called once per finished chunk from any goroutine.
	Progress func()
}

// ChunkError records which chunk failed during a partial analysis.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string { return fmt.Sprintf("chunk %d: %v", e.Index+1, e.Err) }
func (e *ChunkError) Unwrap() error { return e.Err }

func (a *Analyzer) params(p entities.DecodingParams) *openai.ChatCompletionNewParams {
	params := &openai.ChatCompletionNewParams{
		Model:       a.Model,
		Temperature: openai.Float(cmp.Or(p.Temperature, a.Temperature, 0.1)),
		TopP:        openai.Float(cmp.Or(p.TopP, a.TopP, 1)),
	}
	if a.StructuredOutput {
		params.ResponseFormat = schema.StructuredOutputsResponseFormat()
	} else {
		params.ResponseFormat = schema.JSONObjectResponseFormat()
	}
	return params
}

// AnalyzeChunk issues one extraction call and returns the raw reply.
// An empty string means the model produced no content.
func (a *Analyzer) AnalyzeChunk(ctx context.Context, chunk string, p entities.DecodingParams) (string, error) {
	params := a.params(p)
	if n, err := utils.NumTokens(extractPrompt + chunk); err == nil {
		log.Debug("analyzing chunk", "chars", len(chunk), "tokens", n)
	} else {
		log.Debug("analyzing chunk", "chars", len(chunk))
	}

	out, err := a.Inferencer.Infer(ctx, params, extractPrompt, extractUserPrefix+chunk)
	if errors.Is(err, inference.ErrEmptyCompletion) {
		return "", nil
	}
	return out, err
}

// AnalyzeAll runs AnalyzeChunk for every chunk concurrently and returns the
// replies in chunk order. Unless PartialResults is set, the first failure
// cancels the remaining calls and is returned. In partial mode failed chunks
// get an empty reply and are listed in failed; an error is returned only when
// every chunk failed.
func (a *Analyzer) AnalyzeAll(ctx context.Context, chunks []string, p entities.DecodingParams) (replies []string, failed []*ChunkError, err error) {
	replies = make([]string, len(chunks))
	if len(chunks) == 0 {
		return replies, nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.PartialResults {
		// Failures must not cancel the siblings.
		g = new(errgroup.Group)
		gctx = ctx
	}
	g.SetLimit(cmp.Or(max(a.MaxConcurrency, 0), -1))

	var mu sync.Mutex
	for i, chunk := range chunks {
		g.Go(func() error {
			defer a.progress()
			out, err := a.AnalyzeChunk(gctx, chunk, p)
			if err == nil {
				replies[i] = out
				return nil
			}

			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				log.Warn("chunk analysis failed", "chunk", i+1, "status", apiErr.StatusCode, "error", err)
			} else {
				log.Warn("chunk analysis failed", "chunk", i+1, "error", err)
			}
			if !a.PartialResults {
				return err
			}
			mu.Lock()
			failed = append(failed, &ChunkError{Index: i, Err: err})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(failed) == len(chunks) {
		return nil, failed, fmt.Errorf("all %d chunks failed: %w", len(chunks), failed[0].Err)
	}
	slices.SortFunc(failed, func(x, y *ChunkError) int { return cmp.Compare(x.Index, y.Index) })
	return replies, failed, nil
}

func (a *Analyzer) progress() {
	if a.Progress != nil {
		a.Progress()
	}
}
