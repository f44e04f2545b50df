package pipeline

import (
	"context"

	"github.com/charmbracelet/log"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/utils"
)

// Extractor runs chunk → analyze → parse → merge over one document.
type Extractor struct {
	Analyzer *Analyzer
	// MaxTokensPerRequest bounds each chunk; <= 0 selects DefaultMaxTokensPerRequest.
	MaxTokensPerRequest int
}

// Result is the merged extraction. FailedChunks is only populated in partial mode.
type Result struct {
	Characters   []entities.Character `json:"characters"`
	FailedChunks []int                `json:"failedChunks,omitempty"`
}

// Chunks returns how many analysis calls Extract would make for text.
func (e *Extractor) Chunks(text string) int {
	return len(ChunkByTokenBudget(text, e.MaxTokensPerRequest))
}

// Extract pulls characters out of text. Replies that fail to parse count as
// no characters for their chunk.
func (e *Extractor) Extract(ctx context.Context, text string, p entities.DecodingParams) (Result, error) {
	chunks := ChunkByTokenBudget(text, e.MaxTokensPerRequest)
	log.Info("extracting characters", "chars", len(text), "chunks", len(chunks))

	replies, failed, err := e.Analyzer.AnalyzeAll(ctx, chunks, p)
	if err != nil {
		return Result{}, err
	}

	lists := make([][]entities.Character, len(replies))
	for i, raw := range replies {
		characters, err := ParseCharacters(raw)
		if err != nil {
			log.Warn("failed to parse chunk result", "chunk", i+1, "error", err)
			log.Debug("raw output", "output", utils.LimitStr(raw, 500))
			continue
		}
		lists[i] = characters
	}

	res := Result{Characters: MergeCharacters(lists)}
	for _, f := range failed {
		res.FailedChunks = append(res.FailedChunks, f.Index)
	}
	log.Info("extraction complete", "characters", len(res.Characters), "failed_chunks", len(res.FailedChunks))
	return res, nil
}
