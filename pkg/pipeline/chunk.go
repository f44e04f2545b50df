package pipeline

import (
	"strings"
	"unicode/utf8"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/utils"
)

// DefaultMaxTokensPerRequest leaves room in the context window for the reply.
const DefaultMaxTokensPerRequest = 12000

// ChunkByTokenBudget splits text into consecutive pieces of at most
// maxTokens*CharsPerToken characters. Pieces may end mid-word but never
// inside a character.
func ChunkByTokenBudget(text string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokensPerRequest
	}
	size := maxTokens * utils.CharsPerToken

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
		n++
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}

// JoinNodes concatenates node texts with single spaces.
func JoinNodes(nodes []entities.Node) string {
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	return strings.Join(texts, " ")
}
