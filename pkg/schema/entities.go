package schema

import "taleweaver/pkg/entities"

// Extraction is the JSON document the model returns for one chunk.
type Extraction struct {
	Characters []entities.Character `json:"characters" jsonschema_description:"Every character mentioned in the text"`
}
