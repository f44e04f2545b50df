package entities

// Placeholder marks a character field the source text says nothing about.
const Placeholder = "Not specified"

// Character is identified by Name, compared byte for byte.
type Character struct {
	Name        string `json:"name" jsonschema_description:"Character name exactly as written in the text"`
	Description string `json:"description" jsonschema_description:"Physical description or role, or 'Not specified'"`
	Personality string `json:"personality" jsonschema_description:"Personality traits and characteristics, or 'Not specified'"`
}

// Node is a text segment produced by the indexer. Extraction only reads Text.
type Node struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// DecodingParams controls sampling. Zero values select the stage default.
type DecodingParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"topP,omitempty"`
}
