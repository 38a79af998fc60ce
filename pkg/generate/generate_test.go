package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"

	"fable/pkg/extract"
	"fable/pkg/paint"
	"fable/pkg/story"
)

type fakeInferencer struct {
	response string
}

func (f *fakeInferencer) Infer(context.Context, *openai.ChatCompletionNewParams, string, string) (string, error) {
	return f.response, nil
}

type fakePainter struct {
	requests []paint.Request
	failOn   int  // 1-based call index, 0 = never
	noRefs   bool // provider without image attachments
}

func (f *fakePainter) TakesReferences() bool { return !f.noRefs }

func (f *fakePainter) Paint(_ context.Context, req paint.Request) (paint.Result, error) {
	f.requests = append(f.requests, req)
	call := len(f.requests)
	if f.failOn != 0 && call == f.failOn {
		return paint.Result{}, paint.ErrNoImage
	}
	return paint.Result{
		Data:         []byte(fmt.Sprintf("image-%d", call)),
		MimeType:     "image/png",
		GenerationID: fmt.Sprintf("gen-%d", call),
	}, nil
}

type fakeSink struct {
	saved []string
}

func (f *fakeSink) SavePage(storyID string, page int, data []byte, mimeType string) (string, error) {
	f.saved = append(f.saved, fmt.Sprintf("%s/%d", storyID, page))
	return fmt.Sprintf("/api/stories/%s/pages/%d/image", storyID, page), nil
}

// Fox appears on pages 1 and 3 but not 2; the tracker must mark it
// recurring and the orchestrator must pass page 1's image as ground truth
// for page 3.
const foxJSON = `{
	"entities": [
		{"id": "fox", "name": "Fox", "type": "character", "description": "small red fox, green scarf"}
	],
	"pages": [
		{"text": "Fox set out at dawn.", "entities_present": ["fox"]},
		{"text": "The meadow was quiet.", "entities_present": []},
		{"text": "Fox came home happy.", "entities_present": ["fox"]}
	]
}`

func newStory(pageCount int) *story.Story {
	return story.New(story.Brief{
		Title:     "The Kind Fox",
		AgeRange:  "3-5",
		ArtStyle:  "watercolor",
		PageCount: pageCount,
	})
}

func TestRunKindFoxScenario(t *testing.T) {
	painter := &fakePainter{}
	sink := &fakeSink{}
	g := New(extract.New(&fakeInferencer{response: foxJSON}), painter, sink)

	st := newStory(3)
	if err := g.Run(context.Background(), st); err != nil {
		t.Fatalf("run: %v", err)
	}

	if st.Status != story.StatusCompleted {
		t.Fatalf("status = %s, want completed", st.Status)
	}
	if len(st.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(st.Pages))
	}
	if len(painter.requests) != 3 {
		t.Fatalf("paint calls = %d, want 3", len(painter.requests))
	}

	// Page 1 establishes: no references yet.
	if len(painter.requests[0].References) != 0 {
		t.Fatal("page 1 must not receive reference images")
	}
	// Page 2 has no fox in text, but fox recurs, so its descriptor (and
	// its established reference) ride along.
	if len(painter.requests[1].References) != 1 {
		t.Fatalf("page 2 references = %d, want 1 (forced recurring fox)", len(painter.requests[1].References))
	}
	// Page 3 must receive page 1's image as leading ground truth.
	if len(painter.requests[2].References) != 1 {
		t.Fatalf("page 3 references = %d, want 1", len(painter.requests[2].References))
	}
	if got := string(painter.requests[2].References[0].Data); got != "image-1" {
		t.Fatalf("page 3 reference = %q, want page 1's image", got)
	}

	// Fox's canonical reference is page 1's image, never replaced.
	fox, ok := st.Entity("fox")
	if !ok || fox.Reference == nil {
		t.Fatal("fox must carry an established reference")
	}
	if fox.Reference.Page != 1 {
		t.Fatalf("fox reference page = %d, want 1", fox.Reference.Page)
	}
	if string(fox.Reference.Image) != "image-1" {
		t.Fatalf("fox reference = %q, want image-1", fox.Reference.Image)
	}

	// Pages carry their prompts and locators in ascending order.
	for i, p := range st.Pages {
		if p.PageNumber != i+1 {
			t.Fatalf("page order broken at index %d: %d", i, p.PageNumber)
		}
		if p.ImagePrompt == "" || p.ImageURL == "" {
			t.Fatalf("page %d missing prompt or url", p.PageNumber)
		}
	}
	wantSaves := []string{st.ID + "/1", st.ID + "/2", st.ID + "/3"}
	for i, w := range wantSaves {
		if sink.saved[i] != w {
			t.Fatalf("artifact save order = %v, want %v", sink.saved, wantSaves)
		}
	}
}

func TestRunEstablishOncePolicy(t *testing.T) {
	painter := &fakePainter{}
	g := New(extract.New(&fakeInferencer{response: foxJSON}), painter, &fakeSink{})

	st := newStory(3)
	if err := g.Run(context.Background(), st); err != nil {
		t.Fatalf("run: %v", err)
	}

	fox, _ := st.Entity("fox")
	// A later (hypothetically sharper) image must not displace it.
	if fox.AttachReference(story.Reference{Image: []byte("image-3"), Page: 3}) {
		t.Fatal("AttachReference must refuse to overwrite an established reference")
	}
	if string(fox.Reference.Image) != "image-1" {
		t.Fatalf("reference changed to %q; establish-once violated", fox.Reference.Image)
	}
}

func TestRunFailureAbortsWholeStory(t *testing.T) {
	painter := &fakePainter{failOn: 2}
	g := New(extract.New(&fakeInferencer{response: foxJSON}), painter, &fakeSink{})

	st := newStory(3)
	err := g.Run(context.Background(), st)
	if err == nil {
		t.Fatal("page 2 failure must fail the run")
	}

	var pageErr *PageError
	if !errors.As(err, &pageErr) {
		t.Fatalf("err = %T, want *PageError", err)
	}
	if pageErr.Page != 2 {
		t.Fatalf("failed page = %d, want 2", pageErr.Page)
	}
	if !errors.Is(err, ErrImageGeneration) {
		t.Fatalf("err = %v, want ErrImageGeneration in chain", err)
	}
	if !errors.Is(err, paint.ErrNoImage) {
		t.Fatalf("err = %v, want provider error preserved", err)
	}

	if st.Status != story.StatusFailed || st.FailedAt != 2 {
		t.Fatalf("status = %s/%d, want failed at page 2", st.Status, st.FailedAt)
	}
	if len(st.Pages) != 0 {
		t.Fatal("failed runs must not keep partial pages")
	}
	// Page 3 was never attempted.
	if len(painter.requests) != 2 {
		t.Fatalf("paint calls = %d; remaining pages must not run after a failure", len(painter.requests))
	}
}

func TestRunPainterWithoutReferenceSupport(t *testing.T) {
	painter := &fakePainter{noRefs: true}
	g := New(extract.New(&fakeInferencer{response: foxJSON}), painter, &fakeSink{})

	st := newStory(3)
	if err := g.Run(context.Background(), st); err != nil {
		t.Fatalf("run: %v", err)
	}

	for i, req := range painter.requests {
		if len(req.References) != 0 {
			t.Fatalf("page %d received %d attachments the provider cannot take", i+1, len(req.References))
		}
		if strings.Contains(req.Prompt, "strict visual ground truth") {
			t.Fatalf("page %d prompt promises attached references:\n%s", i+1, req.Prompt)
		}
	}

	// Canonical references are still recorded for the persisted story.
	fox, ok := st.Entity("fox")
	if !ok || fox.Reference == nil || fox.Reference.Page != 1 {
		t.Fatalf("fox reference not established: %+v", fox)
	}
}

func TestRunExtractionFailure(t *testing.T) {
	g := New(extract.New(&fakeInferencer{response: "not json"}), &fakePainter{}, &fakeSink{})

	st := newStory(3)
	err := g.Run(context.Background(), st)
	if !errors.Is(err, extract.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
	if st.Status != story.StatusFailed {
		t.Fatalf("status = %s, want failed", st.Status)
	}
}

func TestRunSinglePageStory(t *testing.T) {
	painter := &fakePainter{}
	g := New(extract.New(&fakeInferencer{response: `{
		"entities": [{"id": "fox", "name": "Fox", "type": "character", "description": "red fox"}],
		"pages": [{"text": "Fox waved hello and goodbye.", "entities_present": ["fox"]}]
	}`}), painter, &fakeSink{})

	st := newStory(1)
	if err := g.Run(context.Background(), st); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.Pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(st.Pages))
	}
	if len(painter.requests[0].References) != 0 {
		t.Fatal("a single page establishes; it cannot reference anything")
	}
}
