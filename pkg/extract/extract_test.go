package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"

	"fable/pkg/story"
)

type fakeInferencer struct {
	response string
	err      error

	gotSystem string
	gotUser   string
	calls     int
}

func (f *fakeInferencer) Infer(_ context.Context, _ *openai.ChatCompletionNewParams, system, user string) (string, error) {
	f.calls++
	f.gotSystem = system
	f.gotUser = user
	return f.response, f.err
}

const foxExtraction = `{
	"entities": [
		{"id": "kind-fox", "name": "Fox", "type": "character", "description": "small red fox, white chest, green scarf"},
		{"id": "meadow", "name": "Sunny Meadow", "type": "location", "description": "wide green meadow with yellow flowers"}
	],
	"pages": [
		{"text": "Fox found a lost scarf in the meadow.", "entities_present": ["kind-fox", "meadow"]},
		{"text": "The wind sang through the grass.", "entities_present": []},
		{"text": "Everyone was warm and happy.", "entities_present": ["kind-fox"]}
	]
}`

func brief(pageCount int) story.Brief {
	return story.Brief{
		Title:     "The Kind Fox",
		AgeRange:  "3-5",
		ArtStyle:  "watercolor",
		PageCount: pageCount,
	}
}

func TestExtractParsesEntitiesAndPages(t *testing.T) {
	inf := &fakeInferencer{response: foxExtraction}
	entities, pages, err := New(inf).Extract(context.Background(), brief(3))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if inf.calls != 1 {
		t.Fatalf("extractor made %d calls, want exactly 1", inf.calls)
	}
	if len(entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(entities))
	}
	if entities[0].ID != "kind-fox" || entities[0].Type != story.EntityCharacter {
		t.Fatalf("unexpected first entity: %+v", entities[0])
	}
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	if pages[0].PageNumber != 1 || pages[2].PageNumber != 3 {
		t.Fatalf("page numbering wrong: %+v", pages)
	}
	if !pages[2].Has("kind-fox") {
		t.Fatal("page 3 should reference kind-fox")
	}
}

func TestExtractEmbedsAgePolicy(t *testing.T) {
	inf := &fakeInferencer{response: foxExtraction}
	if _, _, err := New(inf).Extract(context.Background(), brief(3)); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(inf.gotUser, "age range: 3-5") {
		t.Fatalf("user prompt missing age policy:\n%s", inf.gotUser)
	}
	if !strings.Contains(inf.gotSystem, "AT MOST 3 main characters") {
		t.Fatal("system prompt missing the main-character cap")
	}
}

func TestExtractUnknownAgeFallsBack(t *testing.T) {
	inf := &fakeInferencer{response: foxExtraction}
	b := brief(3)
	b.AgeRange = "99-120"
	if _, _, err := New(inf).Extract(context.Background(), b); err != nil {
		t.Fatalf("unknown age bracket must fall back, not fail: %v", err)
	}
	if !strings.Contains(inf.gotUser, "age range: 6-8") {
		t.Fatalf("unknown bracket must use the default policy:\n%s", inf.gotUser)
	}
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	inf := &fakeInferencer{response: "```json\n" + foxExtraction + "\n```"}
	_, pages, err := New(inf).Extract(context.Background(), brief(3))
	if err != nil {
		t.Fatalf("extract with fenced response: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
}

func TestExtractDropsDanglingEntityRefs(t *testing.T) {
	inf := &fakeInferencer{response: `{
		"entities": [{"id": "fox", "name": "Fox", "type": "character", "description": "red fox"}],
		"pages": [{"text": "Hello.", "entities_present": ["fox", "phantom"]}]
	}`}
	entities, pages, err := New(inf).Extract(context.Background(), brief(1))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pages[0].EntityIDs) != 1 || pages[0].EntityIDs[0] != "fox" {
		t.Fatalf("dangling reference survived: %v", pages[0].EntityIDs)
	}

	// The invariant the tracker depends on: page ids ⊆ entity ids.
	known := map[string]bool{}
	for _, e := range entities {
		known[e.ID] = true
	}
	for _, p := range pages {
		for _, id := range p.EntityIDs {
			if !known[id] {
				t.Fatalf("page references unknown entity %q", id)
			}
		}
	}
}

func TestExtractTrimsExtraPages(t *testing.T) {
	inf := &fakeInferencer{response: foxExtraction}
	_, pages, err := New(inf).Extract(context.Background(), brief(2))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want trimmed to 2", len(pages))
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name string
		inf  *fakeInferencer
	}{
		{"provider error", &fakeInferencer{err: errors.New("boom")}},
		{"empty content", &fakeInferencer{response: "   "}},
		{"malformed json", &fakeInferencer{response: `{"entities": [`}},
		{"no pages", &fakeInferencer{response: `{"entities": [], "pages": []}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.inf).Extract(context.Background(), brief(3))
			if !errors.Is(err, ErrExtraction) {
				t.Fatalf("err = %v, want ErrExtraction", err)
			}
		})
	}
}

func TestExtractRejectsBadBrief(t *testing.T) {
	inf := &fakeInferencer{response: foxExtraction}

	b := brief(0)
	if _, _, err := New(inf).Extract(context.Background(), b); err == nil {
		t.Fatal("page count 0 must be rejected")
	}
	b = brief(3)
	b.Title = "  "
	if _, _, err := New(inf).Extract(context.Background(), b); err == nil {
		t.Fatal("empty title must be rejected")
	}
	if inf.calls != 0 {
		t.Fatal("invalid briefs must not reach the provider")
	}
}
