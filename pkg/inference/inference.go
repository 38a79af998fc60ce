// Package inference adapts text-generation providers behind a single
// interface: a prompt goes in, raw model text comes out. Structured-output
// expectations travel in the params.
package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Inferencer runs one text-generation request. Implementations must not
// retry internally; failures surface to the caller untouched.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}
