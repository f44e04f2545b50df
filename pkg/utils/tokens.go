package utils

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the rough ratio used wherever a tokenizer is unavailable.
const CharsPerToken = 4

var encoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

func NumTokens(text string) (int, error) {
	tkm, err := encoding()
	if err != nil {
		return 0, err
	}
	return len(tkm.Encode(text, nil, nil)), nil
}

// SplitTokens cuts text into windows of chunkSize tokens, each starting
// chunkSize-overlap tokens after the previous one. Without a tokenizer it
// approximates tokens as CharsPerToken runes.
func SplitTokens(text string, chunkSize, overlap int) []string {
	if text == "" || chunkSize <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	if tkm, err := encoding(); err == nil {
		tokens := tkm.Encode(text, nil, nil)
		return windows(len(tokens), chunkSize, overlap, func(i, j int) string {
			return tkm.Decode(tokens[i:j])
		})
	}
	runes := []rune(text)
	return windows(len(runes), chunkSize*CharsPerToken, overlap*CharsPerToken, func(i, j int) string {
		return string(runes[i:j])
	})
}

func windows(n, size, overlap int, cut func(i, j int) string) []string {
	var out []string
	step := size - overlap
	for i := 0; i < n; i += step {
		end := min(i+size, n)
		out = append(out, cut(i, end))
		if end == n {
			break
		}
	}
	return out
}
