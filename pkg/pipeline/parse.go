package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/schema"
	"taleweaver/pkg/utils"
)

var ErrNoJSON = errors.New("no JSON object in model output")

// ParseCharacters validates one raw extraction reply. An empty reply is an
// empty list. Entries without a name are dropped and blank fields are set to
// the placeholder. Names are kept exactly as the model wrote them.
func ParseCharacters(raw string) ([]entities.Character, error) {
	out := utils.CleanJSON(utils.StripThink(raw))
	if out == "" {
		return nil, nil
	}
	out, ok := utils.TrimToObject(out)
	if !ok {
		return nil, ErrNoJSON
	}

	var parsed schema.Extraction
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	characters := make([]entities.Character, 0, len(parsed.Characters))
	for _, c := range parsed.Characters {
		if c.Name == "" {
			continue
		}
		if c.Description == "" {
			c.Description = entities.Placeholder
		}
		if c.Personality == "" {
			c.Personality = entities.Placeholder
		}
		characters = append(characters, c)
	}
	return characters, nil
}
