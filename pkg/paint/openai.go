package paint

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/segmentio/ksuid"
)

// OpenAIPainter generates illustrations through the Images API. The API
// takes no reference images, so references arrive as a textual reminder
// only; prefer GeminiPainter when visual grounding matters.
type OpenAIPainter struct {
	client *openai.Client
	model  string
}

func NewOpenAIPainter(apiKey, model string) *OpenAIPainter {
	if model == "" {
		model = "dall-e-3"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIPainter{
		client: &client,
		model:  model,
	}
}

// TakesReferences is false: the Images API accepts no attachments, so
// visual grounding must stay textual.
func (o *OpenAIPainter) TakesReferences() bool { return false }

func (o *OpenAIPainter) Paint(ctx context.Context, req Request) (Result, error) {
	prompt := req.Prompt
	if len(req.References) > 0 {
		prompt = "Earlier pages of this book already established the characters' designs; " +
			"follow the written descriptions below with complete fidelity.\n\n" + prompt
	}

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		Size:           openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai image error: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Result{}, fmt.Errorf("openai image: %w", ErrNoImage)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Result{}, fmt.Errorf("openai image decode: %w", err)
	}

	return Result{
		Data:          data,
		MimeType:      "image/png",
		RevisedPrompt: resp.Data[0].RevisedPrompt,
		GenerationID:  ksuid.New().String(),
	}, nil
}
