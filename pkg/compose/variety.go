package compose

// Scene-variety directives. Interior pages cycle these two lists by page
// index so consecutive illustrations never ask for the same framing.

var cameraAngles = []string{
	"medium shot at the character's eye level",
	"low-angle shot looking up, making the scene feel big and exciting",
	"high bird's-eye view looking down on the scene",
	"close-up on the main character's face and expression",
	"over-the-shoulder view following the main character into the scene",
	"wide shot with the characters small against their surroundings",
}

var poseDirectives = []string{
	"characters in mid-action, caught in motion",
	"characters paused in a quiet, reflective moment",
	"characters interacting face to face",
	"characters looking toward something just outside the frame",
	"characters arranged asymmetrically, leading the eye across the page",
}

const establishingShot = "Wide establishing shot that introduces the setting " +
	"and shows each character fully, head to toe, in a clear front-facing view."

const conclusiveShot = "Warm, conclusive final scene: calm composition, " +
	"golden comforting light, the characters together and content, a feeling " +
	"of a story gently ending."

// varietyFor picks the directive for a 0-based page index. The first page
// always establishes, the last page always concludes; a single-page story
// gets the establishing directive (first-page rules win).
func varietyFor(pageIndex, pageCount int) string {
	switch {
	case pageIndex == 0:
		return establishingShot
	case pageIndex == pageCount-1:
		return conclusiveShot
	default:
		angle := cameraAngles[(pageIndex-1)%len(cameraAngles)]
		pose := poseDirectives[(pageIndex-1)%len(poseDirectives)]
		return "Camera: " + angle + ". Composition: " + pose + "."
	}
}
