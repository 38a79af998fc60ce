package compose

import "strings"

// Best-effort keyword extraction from a free-text visual description.
// The extractor asks the model for condensed design cards, but prose
// still slips through; this trims it to the attributes that matter for
// visual consistency. When nothing matches, the full (truncated)
// description is used instead, so a vague card never becomes an empty one.

var colorWords = []string{
	"red", "orange", "yellow", "green", "blue", "purple", "violet", "pink",
	"brown", "tan", "beige", "cream", "white", "black", "gray", "grey",
	"gold", "golden", "silver", "turquoise", "teal", "lavender", "crimson",
	"scarlet", "amber", "emerald", "navy", "maroon", "russet", "auburn",
}

var shapeWords = []string{
	"round", "rounded", "chubby", "plump", "slender", "tall", "short",
	"tiny", "small", "large", "big", "lanky", "stocky", "fluffy", "sleek",
	"pointy", "floppy", "bushy", "long", "curly", "spiky",
}

var materialWords = []string{
	"fur", "furry", "feathers", "feathered", "scales", "scaly", "wool",
	"woolly", "velvet", "silk", "cotton", "denim", "leather", "wooden",
	"metal", "stone", "glass", "knitted", "patched", "striped", "spotted",
}

// designCard condenses a description into "colors; shape; texture"
// keywords. Word order follows the description so output is stable.
func designCard(description string) string {
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !('a' <= r && r <= 'z') && r != '-'
	})

	var colors, shapes, materials []string
	seen := make(map[string]struct{})
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		switch {
		case contains(colorWords, w):
			if len(colors) < 3 {
				colors = append(colors, w)
			}
		case contains(shapeWords, w):
			shapes = append(shapes, w)
		case contains(materialWords, w):
			materials = append(materials, w)
		default:
			continue
		}
		seen[w] = struct{}{}
	}

	var parts []string
	if len(colors) > 0 {
		parts = append(parts, strings.Join(colors, ", "))
	}
	if len(shapes) > 0 {
		parts = append(parts, strings.Join(shapes, ", "))
	}
	if len(materials) > 0 {
		parts = append(parts, strings.Join(materials, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ")
}

func contains(list []string, w string) bool {
	for _, v := range list {
		if v == w {
			return true
		}
	}
	return false
}
