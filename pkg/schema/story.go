package schema

// Extraction is the structured payload the text provider must return for
// one story: the full canonical cast plus the page-by-page narrative.
type Extraction struct {
	Entities []Entity `json:"entities" jsonschema_description:"Canonical list of every character, location, and object that appears in any illustration"`
	Pages    []Page   `json:"pages" jsonschema_description:"The story split into ordered pages"`
}

type Entity struct {
	ID          string `json:"id" jsonschema_description:"Short stable identifier for the entity, lowercase with hyphens (e.g. 'kind-fox')"`
	Name        string `json:"name" jsonschema_description:"Display name of the entity"`
	Type        string `json:"type" jsonschema:"enum=character,enum=location,enum=object" jsonschema_description:"Whether the entity is a character, a location, or an object"`
	Description string `json:"description" jsonschema_description:"Condensed visual design card: species or type, at most 3 primary colors, 3-4 key visual markers, body shape, face features, and signature clothing"`
}

type Page struct {
	Text            string   `json:"text" jsonschema_description:"Narrative prose for this page, calibrated to the requested age range"`
	EntitiesPresent []string `json:"entities_present" jsonschema_description:"IDs of the entities visible or mentioned on this page; may be empty"`
}
