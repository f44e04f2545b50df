package pipeline

import "taleweaver/pkg/entities"

// MergeCharacters folds per-chunk lists into one list keyed by exact name.
// The first occurrence of a name seeds the entry. For description and
// personality independently, the first value that is not the placeholder
// wins; a later placeholder never erases it. Output keeps first-seen order.
//
// Names are not normalized: "Bob" and "bob" stay distinct characters.
func MergeCharacters(lists [][]entities.Character) []entities.Character {
	idx := make(map[string]int)
	out := []entities.Character{}

	for _, list := range lists {
		for _, c := range list {
			i, ok := idx[c.Name]
			if !ok {
				idx[c.Name] = len(out)
				out = append(out, c)
				continue
			}
			out[i].Description = firstSpecified(out[i].Description, c.Description)
			out[i].Personality = firstSpecified(out[i].Personality, c.Personality)
		}
	}
	return out
}

func firstSpecified(current, incoming string) string {
	if current == entities.Placeholder && incoming != entities.Placeholder {
		return incoming
	}
	return current
}
