// Package compose assembles the per-page image prompt: scene text, entity
// design cards, age and style policy, scene variety, and the constraint
// footer. Composition is pure; calling it twice with the same inputs
// yields byte-identical output.
package compose

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"fable/pkg/consistency"
	"fable/pkg/policy"
	"fable/pkg/story"
)

// DefaultDescriptorBudget caps the token count of a single entity's
// descriptor line inside the prompt.
const DefaultDescriptorBudget = 60

// Input carries everything one page's composition depends on.
type Input struct {
	Page      story.Page
	Entities  []story.Entity
	Analysis  consistency.Analysis
	ColorMode story.ColorMode
	Age       policy.AgePolicy
	Style     policy.StylePolicy
	PageIndex int // 0-based
	PageCount int
	// References maps entity id to its established canonical image.
	// Only entities included on this page are consulted.
	References map[string]story.Reference
	// AttachReferences reports whether the image provider accepts
	// reference images. When false, no reference ids are returned and
	// the ground-truth preamble is suppressed; the written descriptors
	// carry the grounding alone.
	AttachReferences bool
}

// Result is the composed prompt plus the ordered ids of entities whose
// reference images must be supplied ahead of the text payload.
type Result struct {
	Prompt        string
	ReferenceIDs  []string
	IncludedIDs   []string
	FirstShowings []string // ids establishing their appearance on this page
}

// Composer builds prompts under a descriptor token budget.
type Composer struct {
	budget int

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func New() *Composer {
	return &Composer{budget: DefaultDescriptorBudget}
}

// WithBudget overrides the per-descriptor token budget.
func (c *Composer) WithBudget(tokens int) *Composer {
	if tokens > 0 {
		c.budget = tokens
	}
	return c
}

// Compose builds the final prompt for one page.
func (c *Composer) Compose(in Input) Result {
	included := c.includedEntities(in)

	var refIDs []string
	var firstShowings []string
	for _, e := range included {
		if _, ok := in.References[e.ID]; ok {
			if in.AttachReferences {
				refIDs = append(refIDs, e.ID)
			}
		} else if idx, ok := in.Analysis.FirstAppearance[e.ID]; ok && idx == in.PageIndex {
			firstShowings = append(firstShowings, e.ID)
		}
	}

	var b strings.Builder

	// Reference images, when present, are strict ground truth and lead
	// the provider payload; the prompt says so up front.
	if len(refIDs) > 0 {
		names := c.namesOf(included, refIDs)
		fmt.Fprintf(&b, "The attached reference images are strict visual ground truth for %s. "+
			"Match their exact appearance: same colors, same proportions, same markings, same clothing.\n\n",
			joinNames(names))
	}

	if in.PageIndex == 0 {
		b.WriteString("This is the first illustration of the book. Establish the definitive " +
			"visual design of every character listed below; these designs will be reused " +
			"on every later page.\n\n")
	} else {
		names := characterNames(included)
		if len(names) > 0 {
			fmt.Fprintf(&b, "Illustrate the next page of an ongoing book. %s appeared on earlier "+
				"pages: reproduce their established appearance exactly, with no redesigns.\n\n",
				joinNames(names))
		}
	}

	fmt.Fprintf(&b, "Scene: %s\n\n", strings.TrimSpace(in.Page.Text))

	if len(included) > 0 {
		b.WriteString("Cast on this page:\n")
		for _, e := range included {
			line := c.descriptorLine(e)
			if !in.Page.Has(e.ID) {
				line += " (recurring in this story; keep visible and consistent)"
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
		b.WriteString("\n")
	}

	b.WriteString(varietyFor(in.PageIndex, in.PageCount))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Art style: %s\n", in.Style.Descriptor)
	fmt.Fprintf(&b, "Illustration complexity for ages %s: %s. %s.\n",
		in.Age.Range, in.Age.IllustrationNote, in.Age.ColorGuidance)
	if in.ColorMode == story.ColorModeMonochrome {
		b.WriteString(policy.MonochromeDirective)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(constraintFooter)

	ids := make([]string, 0, len(included))
	for _, e := range included {
		ids = append(ids, e.ID)
	}

	return Result{
		Prompt:        b.String(),
		ReferenceIDs:  refIDs,
		IncludedIDs:   ids,
		FirstShowings: firstShowings,
	}
}

const constraintFooter = "Hard constraints: absolutely no text, letters, numbers, " +
	"labels, captions, titles, or watermarks anywhere in the image. Child-friendly " +
	"content only. Keep the palette bright and cohesive with the chosen style."

// includedEntities selects the page's own entities plus every recurring
// entity the page omits. Page order first, then the story's entity order
// for the forced ones, so the result is deterministic.
func (c *Composer) includedEntities(in Input) []story.Entity {
	var out []story.Entity
	picked := make(map[string]struct{})

	for _, id := range in.Page.EntityIDs {
		if _, dup := picked[id]; dup {
			continue
		}
		for i := range in.Entities {
			if in.Entities[i].ID == id {
				out = append(out, in.Entities[i])
				picked[id] = struct{}{}
				break
			}
		}
	}
	for i := range in.Entities {
		e := in.Entities[i]
		if _, dup := picked[e.ID]; dup {
			continue
		}
		if in.Analysis.IsRecurring(e.ID) {
			out = append(out, e)
			picked[e.ID] = struct{}{}
		}
	}
	return out
}

// descriptorLine renders one entity as "Name (type): summary", preferring
// the compact design card and falling back to the raw description, both
// trimmed to the token budget.
func (c *Composer) descriptorLine(e story.Entity) string {
	desc := designCard(e.Description)
	if desc == "" {
		desc = strings.TrimSpace(e.Description)
	}
	if desc == "" {
		desc = "as described in the story"
	}
	return fmt.Sprintf("%s (%s): %s", e.Name, e.Type, c.truncate(desc))
}

// truncate cuts text to the token budget, appending an ellipsis marker so
// trimming is visible rather than silent. Falls back to a rune cut when
// the tokenizer is unavailable (offline BPE data).
func (c *Composer) truncate(text string) string {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel("gpt-4-0613")
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		runes := []rune(text)
		if len(runes) <= c.budget*4 {
			return text
		}
		return strings.TrimRight(string(runes[:c.budget*4]), " ") + "…"
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.budget {
		return text
	}
	return strings.TrimRight(c.enc.Decode(tokens[:c.budget]), " ") + "…"
}

func (c *Composer) namesOf(entities []story.Entity, ids []string) []string {
	var names []string
	for _, id := range ids {
		for _, e := range entities {
			if e.ID == id {
				names = append(names, e.Name)
				break
			}
		}
	}
	return names
}

func characterNames(entities []story.Entity) []string {
	var names []string
	for _, e := range entities {
		if e.Type == story.EntityCharacter {
			names = append(names, e.Name)
		}
	}
	return names
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
