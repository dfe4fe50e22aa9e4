package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the quantity request extracted from a free-form opening
// message, e.g. "3 images et 1 carrousel".
type Intent struct {
	Images    int
	Carousels int
}

var (
	imageQtyRe    = regexp.MustCompile(`(?i)(\d+)\s*(images?|visuels?|photos?)`)
	carouselQtyRe = regexp.MustCompile(`(?i)(\d+)\s*(carrousels?|carousels?|slides? posts?)`)
)

const maxUnitsPerType = 10

// ParseIntent scans text for quantity intent. Returns nil when no
// recognizable quantities are present. Kept behind this narrow interface
// so a model-based classifier can replace it without touching the state
// machine.
func ParseIntent(text string) *Intent {
	out := Intent{}
	if m := imageQtyRe.FindStringSubmatch(text); m != nil {
		out.Images, _ = strconv.Atoi(m[1])
	}
	if m := carouselQtyRe.FindStringSubmatch(text); m != nil {
		out.Carousels, _ = strconv.Atoi(m[1])
	}
	if out.Images <= 0 && out.Carousels <= 0 {
		return nil
	}
	if out.Images > maxUnitsPerType {
		out.Images = maxUnitsPerType
	}
	if out.Carousels > maxUnitsPerType {
		out.Carousels = maxUnitsPerType
	}
	return &out
}

var skipKeywords = []string{"skip", "non", "next", "passe", "aucun"}

// IsSkip reports whether the reply declines the current question.
func IsSkip(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, k := range skipKeywords {
		if t == k {
			return true
		}
	}
	return false
}

var affirmatives = []string{"oui", "ok", "go", "valide", "yes", "gogogo", "c'est parti", "on y va"}

// IsAffirmative reports whether the reply confirms the recap. Anything
// else in the confirming state restarts the conversation.
func IsAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, "!. ")
	for _, a := range affirmatives {
		if t == a {
			return true
		}
	}
	return false
}
