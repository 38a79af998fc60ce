// Package paint adapts image-generation providers. The contract is one
// prompt plus optional reference images in, one image out; reference
// images are ordered before the text in the provider payload because that
// ordering is load-bearing for visual grounding.
package paint

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrNoImage is returned when the provider answered but produced no image.
var ErrNoImage = errors.New("no image produced")

// Reference is a previously generated image supplied as visual ground
// truth for the request.
type Reference struct {
	Data     []byte
	MimeType string
}

// Request is one image-generation call.
type Request struct {
	Prompt     string
	References []Reference
}

// Result is the generated image plus any provider-revised prompt.
type Result struct {
	Data          []byte
	MimeType      string
	RevisedPrompt string
	GenerationID  string
}

// Painter runs one image-generation request. Implementations must not
// retry internally. TakesReferences reports whether Paint honors
// Request.References as actual image attachments; callers composing
// prompts that mention attached images must check it first.
type Painter interface {
	Paint(ctx context.Context, req Request) (Result, error)
	TakesReferences() bool
}

// Limited gates an inner Painter with a rate limiter so concurrent story
// runs on one instance stay inside the provider quota.
type Limited struct {
	inner   Painter
	limiter *rate.Limiter
}

func Limit(inner Painter, limiter *rate.Limiter) *Limited {
	return &Limited{inner: inner, limiter: limiter}
}

func (l *Limited) Paint(ctx context.Context, req Request) (Result, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}
	return l.inner.Paint(ctx, req)
}

func (l *Limited) TakesReferences() bool {
	return l.inner.TakesReferences()
}
