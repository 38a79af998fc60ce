package paint

import (
	"context"
	"fmt"

	"github.com/segmentio/ksuid"
	"google.golang.org/genai"
)

// GeminiPainter generates illustrations with a Gemini image model.
// Reference parts lead the content slice; the text prompt comes last.
type GeminiPainter struct {
	client *genai.Client
	model  string
}

func NewGeminiPainter(ctx context.Context, apiKey, model string) (*GeminiPainter, error) {
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiPainter{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiPainter) TakesReferences() bool { return true }

func (g *GeminiPainter) Paint(ctx context.Context, req Request) (Result, error) {
	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		mime := ref.MimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, mime))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		config,
	)
	if err != nil {
		return Result{}, fmt.Errorf("gemini image error: %w", err)
	}

	var out Result
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch {
			case part.InlineData != nil && len(part.InlineData.Data) > 0 && out.Data == nil:
				out.Data = part.InlineData.Data
				out.MimeType = part.InlineData.MIMEType
			case part.Text != "" && out.RevisedPrompt == "":
				out.RevisedPrompt = part.Text
			}
		}
	}
	if out.Data == nil {
		return Result{}, fmt.Errorf("gemini image: %w", ErrNoImage)
	}
	out.GenerationID = ksuid.New().String()
	return out, nil
}
