// Package schema declares the structured-output contract for the
// narrative extraction call and reflects it into a JSON schema.
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

// ExtractionResponseFormat instructs providers with structured-output
// support to return JSON matching the Extraction schema exactly.
func ExtractionResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "storybook_extraction",
		Description: openai.String("Page-by-page storybook narrative with a canonical visual entity list"),
		Schema:      ExtractionSchema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
