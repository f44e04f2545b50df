package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/inference"
)

func TestAnalyzeChunkParams(t *testing.T) {
	fake := &fakeInferencer{respond: func(string) (string, error) { return `{"characters":[]}`, nil }}
	a := &Analyzer{Inferencer: fake, Model: "gpt-test"}

	out, err := a.AnalyzeChunk(context.Background(), "Alice is brave.", entities.DecodingParams{})
	if err != nil || out != `{"characters":[]}` {
		t.Fatalf("AnalyzeChunk() = %q, %v", out, err)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	c := calls[0]
	if c.params.Model != "gpt-test" {
		t.Errorf("model = %q", c.params.Model)
	}
	if c.params.Temperature.Value != 0.1 || c.params.TopP.Value != 1 {
		t.Errorf("temperature/top_p = %v/%v, want 0.1/1", c.params.Temperature.Value, c.params.TopP.Value)
	}
	if c.params.ResponseFormat.OfJSONObject == nil {
		t.Error("extraction did not request a JSON object")
	}
	if c.system != extractPrompt || chunkText(c.user) != "Alice is brave." {
		t.Errorf("prompt mismatch: system=%q user=%q", c.system, c.user)
	}
}

func TestAnalyzeChunkOverrides(t *testing.T) {
	fake := &fakeInferencer{respond: func(string) (string, error) { return "{}", nil }}
	a := &Analyzer{Inferencer: fake, Temperature: 0.2, StructuredOutput: true}

	if _, err := a.AnalyzeChunk(context.Background(), "x", entities.DecodingParams{Temperature: 0.9, TopP: 0.5}); err != nil {
		t.Fatal(err)
	}
	c := fake.Calls()[0]
	if c.params.Temperature.Value != 0.9 || c.params.TopP.Value != 0.5 {
		t.Errorf("request params not applied: %v/%v", c.params.Temperature.Value, c.params.TopP.Value)
	}
	if c.params.ResponseFormat.OfJSONSchema == nil {
		t.Error("structured output not requested")
	}
}

func TestAnalyzeChunkEmptyContent(t *testing.T) {
	a := &Analyzer{Inferencer: &fakeInferencer{}}
	out, err := a.AnalyzeChunk(context.Background(), "x", entities.DecodingParams{})
	if err != nil || out != "" {
		t.Errorf("AnalyzeChunk() = %q, %v, want empty reply without error", out, err)
	}
}

func TestAnalyzeAllKeepsChunkOrder(t *testing.T) {
	fake := &fakeInferencer{respond: func(user string) (string, error) {
		chunk := chunkText(user)
		if chunk == "first" {
			time.Sleep(20 * time.Millisecond)
		}
		return "reply:" + chunk, nil
	}}
	var progressed atomic.Int32
	a := &Analyzer{Inferencer: fake, Progress: func() { progressed.Add(1) }}

	replies, failed, err := a.AnalyzeAll(context.Background(), []string{"first", "second", "third"}, entities.DecodingParams{})
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("failed = %v", failed)
	}
	if got := strings.Join(replies, ","); got != "reply:first,reply:second,reply:third" {
		t.Errorf("replies = %s", got)
	}
	if progressed.Load() != 3 {
		t.Errorf("progress called %d times, want 3", progressed.Load())
	}
}

func TestAnalyzeAllIsConcurrent(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	fake := &fakeInferencer{}
	fake.respond = func(string) (string, error) {
		if fake.inFlight.Load() == 4 {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		return "{}", nil
	}

	a := &Analyzer{Inferencer: fake}
	if _, _, err := a.AnalyzeAll(context.Background(), []string{"a", "b", "c", "d"}, entities.DecodingParams{}); err != nil {
		t.Fatal(err)
	}
	if got := fake.maxInFlight.Load(); got != 4 {
		t.Errorf("max in flight = %d, want 4", got)
	}
}

func TestAnalyzeAllRespectsConcurrencyLimit(t *testing.T) {
	fake := &fakeInferencer{respond: func(string) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "{}", nil
	}}
	a := &Analyzer{Inferencer: fake, MaxConcurrency: 2}

	chunks := make([]string, 8)
	for i := range chunks {
		chunks[i] = fmt.Sprint(i)
	}
	if _, _, err := a.AnalyzeAll(context.Background(), chunks, entities.DecodingParams{}); err != nil {
		t.Fatal(err)
	}
	if got := fake.maxInFlight.Load(); got > 2 {
		t.Errorf("max in flight = %d, want <= 2", got)
	}
	if len(fake.Calls()) != 8 {
		t.Errorf("got %d calls, want 8", len(fake.Calls()))
	}
}

func TestAnalyzeAllAbortsOnFailure(t *testing.T) {
	boom := errors.New("rate limited")
	fake := &fakeInferencer{respond: func(user string) (string, error) {
		if chunkText(user) == "bad" {
			return "", boom
		}
		return "{}", nil
	}}
	a := &Analyzer{Inferencer: fake}

	replies, _, err := a.AnalyzeAll(context.Background(), []string{"good", "bad", "good"}, entities.DecodingParams{})
	if !errors.Is(err, boom) {
		t.Fatalf("AnalyzeAll() error = %v, want %v", err, boom)
	}
	if replies != nil {
		t.Errorf("partial replies returned on abort: %v", replies)
	}
}

func TestAnalyzeAllPartialResults(t *testing.T) {
	boom := errors.New("upstream 500")
	fake := &fakeInferencer{respond: func(user string) (string, error) {
		if strings.HasPrefix(chunkText(user), "bad") {
			return "", boom
		}
		return "ok", nil
	}}
	a := &Analyzer{Inferencer: fake, PartialResults: true}

	replies, failed, err := a.AnalyzeAll(context.Background(), []string{"bad1", "good", "bad2"}, entities.DecodingParams{})
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}
	if len(failed) != 2 || failed[0].Index != 0 || failed[1].Index != 2 {
		t.Fatalf("failed = %v, want chunks 0 and 2", failed)
	}
	if !errors.Is(failed[0], boom) {
		t.Errorf("ChunkError does not unwrap to the cause: %v", failed[0])
	}
	if replies[1] != "ok" || replies[0] != "" || replies[2] != "" {
		t.Errorf("replies = %q", replies)
	}

	_, _, err = a.AnalyzeAll(context.Background(), []string{"bad"}, entities.DecodingParams{})
	if !errors.Is(err, boom) {
		t.Errorf("all-failed error = %v, want %v", err, boom)
	}
}

func TestAnalyzeAllEmpty(t *testing.T) {
	fake := &fakeInferencer{}
	a := &Analyzer{Inferencer: fake}
	replies, failed, err := a.AnalyzeAll(context.Background(), nil, entities.DecodingParams{})
	if err != nil || len(replies) != 0 || failed != nil {
		t.Errorf("AnalyzeAll(nil) = %v, %v, %v", replies, failed, err)
	}
	if len(fake.Calls()) != 0 {
		t.Error("AnalyzeAll(nil) called the model")
	}
}

var _ inference.Inferencer = (*fakeInferencer)(nil)
