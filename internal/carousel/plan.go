package carousel

// SlideKind is the archetype of one slide in a carousel plan.
type SlideKind string

const (
	SlideHero     SlideKind = "hero"
	SlideProblem  SlideKind = "problem"
	SlideSolution SlideKind = "solution"
	SlideImpact   SlideKind = "impact"
	SlideCTA      SlideKind = "cta"
	SlideVariant  SlideKind = "variant"
)

// ArchetypesFor maps a requested slide count to the slide sequence.
// 5 is the canonical story arc, 3 the short form, anything else a flat
// run of variants.
func ArchetypesFor(count int) []SlideKind {
	switch count {
	case 5:
		return []SlideKind{SlideHero, SlideProblem, SlideSolution, SlideImpact, SlideCTA}
	case 3:
		return []SlideKind{SlideHero, SlideSolution, SlideCTA}
	default:
		if count <= 0 {
			count = 5
			return ArchetypesFor(count)
		}
		kinds := make([]SlideKind, count)
		for i := range kinds {
			kinds[i] = SlideVariant
		}
		return kinds
	}
}

type KPI struct {
	Label string `json:"label"`
	Delta string `json:"delta"`
}

type Slide struct {
	Kind      SlideKind `json:"kind"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Punchline string    `json:"punchline,omitempty"`
	Bullets   []string  `json:"bullets,omitempty"`
	KPIs      []KPI     `json:"kpis,omitempty"`
	CTA       string    `json:"cta,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Globals seed every plan and are merged with brand-kit overrides before
// generation.
type Globals struct {
	Audience    string   `json:"audience"`
	Promise     string   `json:"promise"`
	CTA         string   `json:"cta"`
	Terminology []string `json:"terminology"`
	BannedWords []string `json:"banned_words"`
}

type Plan struct {
	Globals  Globals  `json:"globals"`
	Slides   []Slide  `json:"slides"`
	Captions []string `json:"captions"`
}

// CanonicalCTA is the one call-to-action allowed on hero and cta slides.
const CanonicalCTA = "Essayer Alfie"

// DefaultGlobals returns the product-wide generation defaults.
func DefaultGlobals() Globals {
	return Globals{
		Audience: "créateurs de contenu et petites marques",
		Promise:  "des visuels prêts à poster en quelques minutes",
		CTA:      CanonicalCTA,
		Terminology: []string{
			"Alfie", "visuel", "carrousel", "marque", "Woofs",
		},
		BannedWords: []string{
			"gratuit à vie", "argent facile", "miracle", "garanti à 100%", "spam",
		},
	}
}

// superlatives trip R8; kept package-private, the linter is their only
// consumer.
var superlatives = []string{
	"incroyable", "jamais vu", "révolutionnaire", "ultime", "le meilleur du monde",
}

// solutionSpeak are words that make a problem bullet read like a pitch (R7).
var solutionSpeak = []string{
	"solution", "grâce à", "il suffit", "avec alfie",
}

// Character limits per field kind. Above max is an error, below min a
// warning.
type charRange struct{ Min, Max int }

const (
	FieldTitle     = "title"
	FieldSubtitle  = "subtitle"
	FieldPunchline = "punchline"
	FieldBullet    = "bullet"
	FieldKPILabel  = "kpi_label"
	FieldKPIDelta  = "kpi_delta"
	FieldCTA       = "cta"
	FieldNote      = "note"
)

var charLimits = map[string]charRange{
	FieldTitle:     {15, 60},
	FieldSubtitle:  {25, 100},
	FieldPunchline: {25, 80},
	FieldBullet:    {15, 60},
	FieldKPILabel:  {8, 30},
	FieldKPIDelta:  {2, 12},
	FieldCTA:       {10, 30},
	FieldNote:      {80, 180},
}

// kpiUnits are the accepted KPI delta suffixes (R5).
var kpiUnits = []string{"%", "pts", "×"}
