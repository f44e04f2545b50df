package schema

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var ExtractionSchema = generateSchema[Extraction]()

// JSONObjectResponseFormat asks for any valid JSON object.
func JSONObjectResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
	}
}

// StructuredOutputsResponseFormat pins the reply to ExtractionSchema.
// Older chat models reject strict schemas; use JSONObjectResponseFormat for those.
func StructuredOutputsResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "character_extraction",
		Description: openai.String("Characters mentioned in a passage of fiction"),
		Schema:      ExtractionSchema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
