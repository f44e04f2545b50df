package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/inference"
)

var ErrNoStory = errors.New("no story generated")

// StoryGenerator writes a short story starring the given characters.
type StoryGenerator struct {
	Inferencer inference.Inferencer
	Model      string

	MaxTokens   int64
	Temperature float64
	TopP        float64
}

// Generate issues one free-text completion. It does not require any characters.
func (g *StoryGenerator) Generate(ctx context.Context, characters []entities.Character, p entities.DecodingParams) (string, error) {
	params := &openai.ChatCompletionNewParams{
		Model:               g.Model,
		MaxCompletionTokens: openai.Int(cmp.Or(g.MaxTokens, 1000)),
		Temperature:         openai.Float(cmp.Or(p.Temperature, g.Temperature, 0.7)),
		TopP:                openai.Float(cmp.Or(p.TopP, g.TopP, 1)),
	}

	log.Debug("generating story", "characters", len(characters))
	story, err := g.Inferencer.Infer(ctx, params, "", StoryPrompt(characters))
	if errors.Is(err, inference.ErrEmptyCompletion) {
		return "", ErrNoStory
	}
	if err != nil {
		return "", err
	}
	if ok, err := g.Inferencer.Verify(ctx, story); !ok {
		log.Debug("story rejected", "error", err)
		return "", ErrNoStory
	}
	return story, nil
}

// StoryPrompt renders the story request for characters.
func StoryPrompt(characters []entities.Character) string {
	entries := make([]string, len(characters))
	for i, c := range characters {
		entries[i] = fmt.Sprintf("- %s:\n  Description: %s\n  Personality: %s", c.Name, c.Description, c.Personality)
	}
	return fmt.Sprintf(storyPrompt, strings.Join(entries, "\n\n"))
}
