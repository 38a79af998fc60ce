// Package generate runs the sequential per-story pipeline: extract once,
// then illustrate pages in strict ascending order so earlier pages can
// establish the canonical reference imagery later pages depend on.
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"fable/pkg/compose"
	"fable/pkg/consistency"
	"fable/pkg/extract"
	"fable/pkg/paint"
	"fable/pkg/policy"
	"fable/pkg/story"
)

// ErrImageGeneration marks a page whose illustration call failed. The
// whole run stops there; no partial story survives.
var ErrImageGeneration = errors.New("image generation failed")

// PageError reports which page terminated the run.
type PageError struct {
	Page int // 1-based
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// ArtifactSink persists a generated page image and returns its locator.
type ArtifactSink interface {
	SavePage(storyID string, page int, data []byte, mimeType string) (string, error)
}

// Generator owns one story run at a time; independent stories may run
// concurrently on separate calls since no state is shared between runs.
type Generator struct {
	extractor  *extract.Extractor
	painter    paint.Painter
	composer   *compose.Composer
	sink       ArtifactSink
	attachRefs bool
}

func New(extractor *extract.Extractor, painter paint.Painter, sink ArtifactSink) *Generator {
	return &Generator{
		extractor:  extractor,
		painter:    painter,
		composer:   compose.New(),
		sink:       sink,
		attachRefs: painter.TakesReferences(),
	}
}

// accumulator is the run-local state threaded through page steps. It is
// owned exclusively by one Run call; pages mutate it only through
// establish, and only for entities without a reference yet.
type accumulator struct {
	references    map[string]story.Reference
	generationIDs map[string]string
}

func newAccumulator() accumulator {
	return accumulator{
		references:    make(map[string]story.Reference),
		generationIDs: make(map[string]string),
	}
}

// establish records the canonical reference for an entity. First write
// wins; reprocessing a page never replaces an established appearance.
func (a accumulator) establish(id string, ref story.Reference, generationID string) accumulator {
	if _, ok := a.references[id]; ok {
		return a
	}
	a.references[id] = ref
	a.generationIDs[id] = generationID
	return a
}

// Run executes the full pipeline for one brief. The returned story is
// completed with all pages, or failed with no pages at all.
func (g *Generator) Run(ctx context.Context, st *story.Story) error {
	brief := st.Brief
	st.Status = story.StatusInProgress

	entities, pages, err := g.extractor.Extract(ctx, brief)
	if err != nil {
		st.Status = story.StatusFailed
		st.Error = err.Error()
		return err
	}
	log.Info("extraction complete", "story", st.ID,
		"entities", len(entities), "pages", len(pages))

	analysis := consistency.Analyze(pages)
	age := policy.ForAge(brief.AgeRange)
	style := policy.ForStyle(brief.ArtStyle)

	acc := newAccumulator()
	done := make([]story.Page, 0, len(pages))

	for i := range pages {
		page := pages[i]
		log.Debug("illustrating page", "story", st.ID, "page", page.PageNumber)

		page, acc, err = g.step(ctx, st.ID, page, stepInput{
			entities: entities,
			analysis: analysis,
			brief:    brief,
			age:      age,
			style:    style,
			index:    i,
			count:    len(pages),
		}, acc)
		if err != nil {
			st.Status = story.StatusFailed
			st.FailedAt = i + 1
			st.Error = err.Error()
			return &PageError{Page: i + 1, Err: err}
		}

		// Every entity first appearing here gets this image as its
		// canonical reference.
		for id, firstIdx := range analysis.FirstAppearance {
			if firstIdx != i {
				continue
			}
			ref := acc.references[id]
			for j := range entities {
				if entities[j].ID == id {
					entities[j].AttachReference(ref)
					break
				}
			}
		}

		done = append(done, page)
	}

	st.Entities = entities
	st.Pages = done
	st.Status = story.StatusCompleted
	if err := st.ValidateReferences(); err != nil {
		// Extraction already filtered dangling ids; this guards the
		// invariant anyway.
		return fmt.Errorf("story invariant violated: %w", err)
	}
	return nil
}

type stepInput struct {
	entities []story.Entity
	analysis consistency.Analysis
	brief    story.Brief
	age      policy.AgePolicy
	style    policy.StylePolicy
	index    int
	count    int
}

// step composes and paints one page, returning the finished page and the
// updated accumulator. The next page's composition must not start before
// this returns: it reads references this step may establish.
func (g *Generator) step(ctx context.Context, storyID string, page story.Page, in stepInput, acc accumulator) (story.Page, accumulator, error) {
	res := g.composer.Compose(compose.Input{
		Page:             page,
		Entities:         in.entities,
		Analysis:         in.analysis,
		ColorMode:        in.brief.ColorMode,
		Age:              in.age,
		Style:            in.style,
		PageIndex:        in.index,
		PageCount:        in.count,
		References:       acc.references,
		AttachReferences: g.attachRefs,
	})
	page.ImagePrompt = res.Prompt

	req := paint.Request{Prompt: res.Prompt}
	for _, id := range res.ReferenceIDs {
		ref := acc.references[id]
		req.References = append(req.References, paint.Reference{
			Data:     ref.Image,
			MimeType: ref.MimeType,
		})
	}

	img, err := g.painter.Paint(ctx, req)
	if err != nil {
		return page, acc, fmt.Errorf("%w: %w", ErrImageGeneration, err)
	}

	url, err := g.sink.SavePage(storyID, page.PageNumber, img.Data, img.MimeType)
	if err != nil {
		return page, acc, fmt.Errorf("saving page artifact: %w", err)
	}
	page.ImageURL = url

	for _, id := range res.FirstShowings {
		acc = acc.establish(id, story.Reference{
			Image:        img.Data,
			MimeType:     img.MimeType,
			GenerationID: img.GenerationID,
			Page:         page.PageNumber,
		}, img.GenerationID)
	}

	return page, acc, nil
}
