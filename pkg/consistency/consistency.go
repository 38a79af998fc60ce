// Package consistency computes which entities recur across pages and
// where each one first appears. It is pure bookkeeping over the extracted
// story: no provider calls, no randomness, same input same output.
package consistency

import "fable/pkg/story"

// Analysis is the result of one pass over a story's pages.
type Analysis struct {
	// Frequency counts how many pages mention each entity.
	Frequency map[string]int
	// FirstAppearance maps entity id to the 0-based index of the first
	// page that mentions it.
	FirstAppearance map[string]int
	// Recurring holds the ids of entities appearing on more than one
	// page. These are forced into every prompt to prevent visual drift.
	Recurring map[string]struct{}
}

// Analyze walks the pages once and tallies entity appearances. Entities
// that appear on zero pages (malformed extractor output) are simply
// absent from every map.
func Analyze(pages []story.Page) Analysis {
	a := Analysis{
		Frequency:       make(map[string]int),
		FirstAppearance: make(map[string]int),
		Recurring:       make(map[string]struct{}),
	}
	for i, p := range pages {
		seen := make(map[string]struct{}, len(p.EntityIDs))
		for _, id := range p.EntityIDs {
			if id == "" {
				continue
			}
			// A page listing the same entity twice still counts once.
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			a.Frequency[id]++
			if _, ok := a.FirstAppearance[id]; !ok {
				a.FirstAppearance[id] = i
			}
		}
	}
	for id, n := range a.Frequency {
		if n > 1 {
			a.Recurring[id] = struct{}{}
		}
	}
	return a
}

// IsRecurring reports whether the entity appears on more than one page.
func (a Analysis) IsRecurring(id string) bool {
	_, ok := a.Recurring[id]
	return ok
}

// EstablishedOn returns the 1-based page number whose illustration
// establishes the entity's canonical appearance.
func (a Analysis) EstablishedOn(id string) (int, bool) {
	idx, ok := a.FirstAppearance[id]
	if !ok {
		return 0, false
	}
	return idx + 1, true
}
