// Package policy holds the static lookup tables that condition story text
// and illustrations on the reader's age bracket and the chosen art style.
package policy

// DefaultAgeRange is used when a brief carries an unknown bracket.
const DefaultAgeRange = "6-8"

// DefaultArtStyle is used when a brief carries an unknown style.
const DefaultArtStyle = "watercolor"

// AgePolicy captures how the narrative and illustrations should be
// calibrated for one age bracket.
type AgePolicy struct {
	Range            string
	Vocabulary       string
	SentenceLength   string
	Complexity       string
	IllustrationNote string
	ColorGuidance    string
}

// StylePolicy is the long-form visual descriptor for one art style.
type StylePolicy struct {
	Name       string
	Descriptor string
}

var agePolicies = map[string]AgePolicy{
	"0-2": {
		Range:            "0-2",
		Vocabulary:       "only the simplest everyday words, lots of sound words (splash, boom, meow), frequent repetition of the same phrase",
		SentenceLength:   "very short sentences of 3-6 words, one sentence per idea",
		Complexity:       "a single gentle event per page, no subplots, no time jumps",
		IllustrationNote: "one large central subject, minimal background detail, big rounded shapes",
		ColorGuidance:    "high-contrast primary colors, flat shapes, no busy textures",
	},
	"3-5": {
		Range:            "3-5",
		Vocabulary:       "familiar preschool words, playful rhythm, occasional new word explained by context",
		SentenceLength:   "short sentences of 5-10 words, at most two sentences per page",
		Complexity:       "one clear storyline with a simple problem and a happy resolution",
		IllustrationNote: "a clear focal character with a simple supporting scene, friendly faces",
		ColorGuidance:    "bright cheerful palette, soft edges, clearly readable shapes",
	},
	"6-8": {
		Range:            "6-8",
		Vocabulary:       "early-reader vocabulary with a few stretch words, light humor welcome",
		SentenceLength:   "sentences of 8-14 words, two to four sentences per page",
		Complexity:       "a storyline with a beginning, a small twist, and a satisfying ending",
		IllustrationNote: "fuller scenes with secondary details that reward a second look",
		ColorGuidance:    "rich varied palette with coherent lighting across pages",
	},
	"9-12": {
		Range:            "9-12",
		Vocabulary:       "middle-grade vocabulary, vivid verbs, some figurative language",
		SentenceLength:   "varied sentence length up to 20 words, a short paragraph per page",
		Complexity:       "allow tension, character feelings, and a meaningful resolution",
		IllustrationNote: "dynamic compositions, expressive poses, atmospheric backgrounds",
		ColorGuidance:    "cinematic palette, deliberate mood lighting, detailed environments",
	},
}

var stylePolicies = map[string]StylePolicy{
	"watercolor": {
		Name: "watercolor",
		Descriptor: "Soft traditional watercolor illustration: translucent washes of pigment " +
			"on textured paper, gentle wet-on-wet color bleeds, loose but confident brushwork, " +
			"delicate ink line accents, plenty of white breathing space around the subjects, " +
			"the warm handmade feel of a classic picture book.",
	},
	"cartoon": {
		Name: "cartoon",
		Descriptor: "Modern cartoon illustration: bold clean outlines, flat vivid fills with " +
			"simple cel shading, exaggerated expressive faces, bouncy rounded character shapes, " +
			"uncluttered graphic backgrounds, the energetic look of a contemporary animated series.",
	},
	"papercut": {
		Name: "papercut",
		Descriptor: "Layered paper-cutout collage: every element cut from colored craft paper " +
			"with visibly crisp edges, subtle drop shadows between the layers giving gentle depth, " +
			"textured paper grain, charming handcrafted imperfection like a diorama in a shadow box.",
	},
	"crayon": {
		Name: "crayon",
		Descriptor: "Hand-drawn crayon and colored-pencil artwork: waxy visible strokes that " +
			"sometimes stray outside the lines, paper tooth showing through the color, wobbly " +
			"heartfelt linework as if drawn by a gifted child, warm and immediate and personal.",
	},
	"anime": {
		Name: "anime",
		Descriptor: "Gentle anime illustration in the spirit of family animated films: expressive " +
			"large eyes, soft painterly backgrounds with attention to light and weather, clean " +
			"character linework, a sense of wonder in everyday scenery, warm nostalgic color grading.",
	},
	"pixel": {
		Name: "pixel",
		Descriptor: "Charming pixel art: a deliberately limited palette, chunky readable sprites, " +
			"careful dithering for shading, tidy tile-based backgrounds, the cozy glow of a " +
			"beloved 16-bit adventure game.",
	},
}

// ForAge returns the policy for the bracket, falling back to the default
// bracket for unknown input. Degrading beats failing here.
func ForAge(ageRange string) AgePolicy {
	if p, ok := agePolicies[ageRange]; ok {
		return p
	}
	return agePolicies[DefaultAgeRange]
}

// ForStyle returns the style descriptor, falling back to the default style
// for unknown input.
func ForStyle(name string) StylePolicy {
	if s, ok := stylePolicies[name]; ok {
		return s
	}
	return stylePolicies[DefaultArtStyle]
}

// KnownAgeRanges lists the supported brackets in ascending order.
func KnownAgeRanges() []string {
	return []string{"0-2", "3-5", "6-8", "9-12"}
}

// KnownStyles lists the supported art styles.
func KnownStyles() []string {
	return []string{"watercolor", "cartoon", "papercut", "crayon", "anime", "pixel"}
}

// MonochromeDirective is appended verbatim to prompts when the story's
// color mode is monochrome.
const MonochromeDirective = "Render the entire illustration strictly in grayscale: " +
	"black, white, and shades of gray only, with no colored elements whatsoever."
