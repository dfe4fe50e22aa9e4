package carousel

import (
	"fmt"
	"unicode/utf8"
)

// FallbackPlan is the hand-authored plan used when every generation
// attempt failed linting. It must always pass Lint without errors so the
// pipeline never dead-ends.
func FallbackPlan(slideCount int, globals Globals) *Plan {
	if globals.CTA == "" || utf8.RuneCountInString(globals.CTA) > charLimits[FieldCTA].Max {
		globals.CTA = CanonicalCTA
	}
	// The static copy below echoes the default promise; a brand-kit
	// promise it cannot echo would break R1, so pin it back.
	defaults := DefaultGlobals()
	if globals.Promise != defaults.Promise {
		globals.Promise = defaults.Promise
	}

	hero := Slide{
		Kind:     SlideHero,
		Title:    "Alfie crée vos visuels",
		Subtitle: "Votre studio de création piloté par l'IA, au service de votre marque",
		CTA:      globals.CTA,
	}
	problem := Slide{
		Kind:  SlideProblem,
		Title: "Créer du contenu prend du temps",
		Bullets: []string{
			"Des heures perdues sur chaque visuel",
			"Une identité de marque incohérente",
		},
	}
	solution := Slide{
		Kind:  SlideSolution,
		Title: "Alfie s'occupe de vos visuels",
		Bullets: []string{
			"Décrivez votre besoin dans le chat",
			"Recevez des visuels prêts à poster en quelques minutes",
			"Chaque carrousel respecte votre marque",
		},
	}
	impact := Slide{
		Kind:  SlideImpact,
		Title: "L'impact Alfie en chiffres",
		KPIs: []KPI{
			{Label: "Temps de création", Delta: "-80%"},
			{Label: "Publications par mois", Delta: "+3×"},
		},
	}
	cta := Slide{
		Kind:  SlideCTA,
		Title: "Prêt à créer avec Alfie ?",
		CTA:   globals.CTA,
		Note:  "Lancez votre premier carrousel avec Alfie dès aujourd'hui : votre marque mérite des visuels soignés, sans y passer vos soirées.",
	}

	var slides []Slide
	switch slideCount {
	case 3:
		slides = []Slide{hero, solution, cta}
	case 5, 0:
		slides = []Slide{hero, problem, solution, impact, cta}
	default:
		if slideCount < 0 {
			slides = []Slide{hero, problem, solution, impact, cta}
			break
		}
		for i := 0; i < slideCount; i++ {
			slides = append(slides, Slide{
				Kind:      SlideVariant,
				Title:     fmt.Sprintf("Idée de visuel Alfie n°%d", i+1),
				Punchline: "Un carrousel signé Alfie pour nourrir votre feed",
			})
		}
	}

	captions := make([]string, 0, len(slides))
	for range slides {
		captions = append(captions, "Créé avec Alfie, votre studio de contenu. "+globals.CTA+" !")
	}

	return &Plan{Globals: globals, Slides: slides, Captions: captions}
}
