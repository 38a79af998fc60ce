// Package story defines the domain model shared by the extraction,
// consistency, composition, and persistence layers.
package story

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

// EntityType classifies what an entity is in the narrative.
type EntityType string

const (
	EntityCharacter EntityType = "character"
	EntityLocation  EntityType = "location"
	EntityObject    EntityType = "object"
)

// Entity is a character, location, or object the illustrations must keep
// visually identical across pages.
type Entity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Description string     `json:"description"`

	// Reference holds the canonical image established on the entity's
	// first-appearance page. Set once, never overwritten.
	Reference *Reference `json:"reference,omitempty"`
}

// Reference is the canonical imagery for an entity.
type Reference struct {
	Image        []byte `json:"-"`
	MimeType     string `json:"mime_type,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Page         int    `json:"page"` // 1-based page that established it
}

// AttachReference records the canonical image for the entity. The first
// write wins; later calls are ignored so an established appearance is
// never replaced by a sharper-looking but different rendering.
func (e *Entity) AttachReference(ref Reference) bool {
	if e.Reference != nil {
		return false
	}
	e.Reference = &ref
	return true
}

func (e Entity) String() string {
	return fmt.Sprintf("%s (%s, %s)", e.Name, e.ID, e.Type)
}

// Page is one unit of narrative plus one illustration.
type Page struct {
	PageNumber  int      `json:"page_number"` // 1-based
	Text        string   `json:"text"`
	EntityIDs   []string `json:"entity_ids"`
	ImagePrompt string   `json:"image_prompt,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// Has reports whether the page's extracted text mentions the entity.
func (p Page) Has(entityID string) bool {
	for _, id := range p.EntityIDs {
		if id == entityID {
			return true
		}
	}
	return false
}

// Status tracks a story record through its generation run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ColorMode selects full color or grayscale illustrations.
type ColorMode string

const (
	ColorModeColor      ColorMode = "color"
	ColorModeMonochrome ColorMode = "monochrome"
)

// Brief is the user's request for a story.
type Brief struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StoryType   string    `json:"story_type,omitempty"`
	AgeRange    string    `json:"age_range"`
	ArtStyle    string    `json:"art_style"`
	ColorMode   ColorMode `json:"color_mode,omitempty"`
	PageCount   int       `json:"page_count"`
}

// Validate rejects briefs the pipeline cannot act on. Unknown age ranges
// and styles are not errors; they fall back to defaults downstream.
func (b Brief) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("brief: title is required")
	}
	if b.PageCount < 1 {
		return fmt.Errorf("brief: page count must be at least 1, got %d", b.PageCount)
	}
	if b.PageCount > MaxPages {
		return fmt.Errorf("brief: page count must be at most %d, got %d", MaxPages, b.PageCount)
	}
	if b.ColorMode != "" && b.ColorMode != ColorModeColor && b.ColorMode != ColorModeMonochrome {
		return fmt.Errorf("brief: unknown color mode %q", b.ColorMode)
	}
	return nil
}

// MaxPages bounds one story so a single request cannot monopolize the
// image provider.
const MaxPages = 24

// Story is the persisted unit: configuration, cast, and ordered pages.
type Story struct {
	ID        string    `json:"id"`
	Brief     Brief     `json:"brief"`
	Status    Status    `json:"status"`
	Entities  []Entity  `json:"entities,omitempty"`
	Pages     []Page    `json:"pages,omitempty"`
	Error     string    `json:"error,omitempty"`
	FailedAt  int       `json:"failed_at,omitempty"` // 1-based page, 0 when not failed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pending story record for the brief.
func New(brief Brief) *Story {
	now := time.Now().UTC()
	return &Story{
		ID:        ksuid.New().String(),
		Brief:     brief,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Entity returns the entity with the given id, if present.
func (s *Story) Entity(id string) (*Entity, bool) {
	for i := range s.Entities {
		if s.Entities[i].ID == id {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// ValidateReferences checks that every page references only known entities.
func (s *Story) ValidateReferences() error {
	known := make(map[string]struct{}, len(s.Entities))
	for _, e := range s.Entities {
		known[e.ID] = struct{}{}
	}
	for _, p := range s.Pages {
		for _, id := range p.EntityIDs {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("page %d references unknown entity %q", p.PageNumber, id)
			}
		}
	}
	return nil
}
