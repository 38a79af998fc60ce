// Package extract turns a story brief into a page-by-page narrative plus
// the canonical entity cast, with exactly one structured-generation call.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"fable/pkg/inference"
	"fable/pkg/policy"
	"fable/pkg/schema"
	"fable/pkg/story"
	"fable/pkg/utils"
)

// ErrExtraction marks failures of the narrative extraction call: the
// provider returned nothing, or content that does not parse against the
// schema. Never retried here; the caller decides.
var ErrExtraction = errors.New("narrative extraction failed")

type Extractor struct {
	inf inference.Inferencer
}

func New(inf inference.Inferencer) *Extractor {
	return &Extractor{inf: inf}
}

// Extract issues the single structured request for the whole story.
func (x *Extractor) Extract(ctx context.Context, brief story.Brief) ([]story.Entity, []story.Page, error) {
	if err := brief.Validate(); err != nil {
		return nil, nil, err
	}

	age := policy.ForAge(brief.AgeRange)
	params := &openai.ChatCompletionNewParams{
		ResponseFormat: schema.ExtractionResponseFormat(),
		Temperature:    openai.Float(0.8),
	}

	raw, err := x.inf.Infer(ctx, params, extractSystemPrompt, x.userPrompt(brief, age))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	raw = utils.CleanJSON(raw)
	if raw == "" {
		return nil, nil, fmt.Errorf("%w: provider returned no content", ErrExtraction)
	}

	var out schema.Extraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing structured output: %w", ErrExtraction, err)
	}
	if len(out.Pages) == 0 {
		return nil, nil, fmt.Errorf("%w: provider returned no pages", ErrExtraction)
	}

	entities := make([]story.Entity, 0, len(out.Entities))
	known := make(map[string]struct{}, len(out.Entities))
	for _, e := range out.Entities {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			continue
		}
		if _, dup := known[id]; dup {
			continue
		}
		known[id] = struct{}{}
		entities = append(entities, story.Entity{
			ID:          id,
			Name:        strings.TrimSpace(e.Name),
			Type:        entityType(e.Type),
			Description: strings.TrimSpace(e.Description),
		})
	}

	pageCount := len(out.Pages)
	if pageCount > brief.PageCount {
		log.Warn("extractor returned extra pages; trimming",
			"requested", brief.PageCount, "returned", pageCount)
		out.Pages = out.Pages[:brief.PageCount]
	} else if pageCount < brief.PageCount {
		log.Warn("extractor returned fewer pages than requested",
			"requested", brief.PageCount, "returned", pageCount)
	}

	pages := make([]story.Page, 0, len(out.Pages))
	for i, p := range out.Pages {
		var ids []string
		for _, id := range p.EntitiesPresent {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := known[id]; !ok {
				log.Warn("dropping dangling entity reference", "page", i+1, "entity", id)
				continue
			}
			ids = append(ids, id)
		}
		pages = append(pages, story.Page{
			PageNumber: i + 1,
			Text:       strings.TrimSpace(p.Text),
			EntityIDs:  ids,
		})
	}

	return entities, pages, nil
}

func (x *Extractor) userPrompt(brief story.Brief, age policy.AgePolicy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", brief.Title)
	if brief.Description != "" {
		fmt.Fprintf(&b, "Story idea: %s\n", brief.Description)
	}
	if brief.StoryType != "" {
		fmt.Fprintf(&b, "Story type: %s\n", brief.StoryType)
	}
	fmt.Fprintf(&b, "Number of pages: exactly %d\n\n", brief.PageCount)
	fmt.Fprintf(&b, "Reader age range: %s\n", age.Range)
	fmt.Fprintf(&b, "Vocabulary: %s\n", age.Vocabulary)
	fmt.Fprintf(&b, "Sentence length: %s\n", age.SentenceLength)
	fmt.Fprintf(&b, "Story complexity: %s\n", age.Complexity)
	return b.String()
}

func entityType(s string) story.EntityType {
	switch story.EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case story.EntityLocation:
		return story.EntityLocation
	case story.EntityObject:
		return story.EntityObject
	default:
		return story.EntityCharacter
	}
}
