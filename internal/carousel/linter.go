package carousel

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Slide    int      `json:"slide"` // -1 for plan-level rules
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Lint runs the eight deterministic rules over a plan. It never mutates
// the plan; auto-correction is a separate pass.
func Lint(p *Plan) []Violation {
	var vs []Violation
	vs = append(vs, lintPromiseEcho(p)...)
	vs = append(vs, lintCTAConsistency(p)...)
	vs = append(vs, lintVocabulary(p)...)
	vs = append(vs, lintStyle(p)...)
	vs = append(vs, lintKPIUnits(p)...)
	vs = append(vs, lintCharLimits(p)...)
	vs = append(vs, lintProblemSolutionBalance(p)...)
	vs = append(vs, lintSuperlatives(p)...)
	return vs
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// slideText flattens every textual field of a slide for content checks.
func slideText(s *Slide) string {
	parts := []string{s.Title, s.Subtitle, s.Punchline, s.CTA, s.Note}
	parts = append(parts, s.Bullets...)
	for _, k := range s.KPIs {
		parts = append(parts, k.Label, k.Delta)
	}
	return strings.Join(parts, " ")
}

func slidesOfKind(p *Plan, kind SlideKind) []int {
	var idx []int
	for i := range p.Slides {
		if p.Slides[i].Kind == kind {
			idx = append(idx, i)
		}
	}
	return idx
}

// R1: the core promise must reappear in the solution or cta slide.
func lintPromiseEcho(p *Plan) []Violation {
	if p.Globals.Promise == "" {
		return nil
	}
	targets := append(slidesOfKind(p, SlideSolution), slidesOfKind(p, SlideCTA)...)
	if len(targets) == 0 {
		return nil
	}
	for _, i := range targets {
		if containsFold(slideText(&p.Slides[i]), p.Globals.Promise) {
			return nil
		}
	}
	return []Violation{{
		Rule:     "R1",
		Severity: SeverityError,
		Slide:    -1,
		Message:  fmt.Sprintf("la promesse %q doit apparaître sur la slide solution ou cta", p.Globals.Promise),
	}}
}

// R2: hero and cta slides must carry byte-identical CTA text.
func lintCTAConsistency(p *Plan) []Violation {
	heroes := slidesOfKind(p, SlideHero)
	ctas := slidesOfKind(p, SlideCTA)
	if len(heroes) == 0 || len(ctas) == 0 {
		return nil
	}
	h, c := heroes[0], ctas[0]
	if p.Slides[h].CTA == p.Slides[c].CTA {
		return nil
	}
	return []Violation{{
		Rule:     "R2",
		Severity: SeverityError,
		Slide:    c,
		Field:    FieldCTA,
		Message:  fmt.Sprintf("CTA hero %q et CTA finale %q doivent être identiques", p.Slides[h].CTA, p.Slides[c].CTA),
	}}
}

// R3: every slide should use the approved terminology (warning) and must
// not contain banned words (error).
func lintVocabulary(p *Plan) []Violation {
	var vs []Violation
	for i := range p.Slides {
		text := slideText(&p.Slides[i])
		for _, banned := range p.Globals.BannedWords {
			if containsFold(text, banned) {
				vs = append(vs, Violation{
					Rule:     "R3",
					Severity: SeverityError,
					Slide:    i,
					Message:  fmt.Sprintf("terme interdit %q", banned),
				})
			}
		}
		found := false
		for _, term := range p.Globals.Terminology {
			if containsFold(text, term) {
				found = true
				break
			}
		}
		if !found && len(p.Globals.Terminology) > 0 {
			vs = append(vs, Violation{
				Rule:     "R3",
				Severity: SeverityWarning,
				Slide:    i,
				Message:  "aucun terme du lexique approuvé",
			})
		}
	}
	return vs
}

// R4: stylistic tics, double exclamation marks and shouty all-caps words.
func lintStyle(p *Plan) []Violation {
	var vs []Violation
	for i := range p.Slides {
		text := slideText(&p.Slides[i])
		if strings.Contains(text, "!!") {
			vs = append(vs, Violation{
				Rule:     "R4",
				Severity: SeverityWarning,
				Slide:    i,
				Message:  "double point d'exclamation",
			})
		}
		for _, w := range strings.Fields(text) {
			if isShouty(w) {
				vs = append(vs, Violation{
					Rule:     "R4",
					Severity: SeverityWarning,
					Slide:    i,
					Message:  fmt.Sprintf("mot tout en majuscules: %q", w),
				})
				break
			}
		}
	}
	return vs
}

// isShouty reports whether w is an all-uppercase word longer than 4 letters.
func isShouty(w string) bool {
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 4
}

// R5: KPI deltas on the impact slide must carry a unit suffix.
func lintKPIUnits(p *Plan) []Violation {
	var vs []Violation
	for _, i := range slidesOfKind(p, SlideImpact) {
		for _, k := range p.Slides[i].KPIs {
			if !hasKPIUnit(k.Delta) {
				vs = append(vs, Violation{
					Rule:     "R5",
					Severity: SeverityError,
					Slide:    i,
					Field:    FieldKPIDelta,
					Message:  fmt.Sprintf("delta KPI %q sans unité (%%, pts ou ×)", k.Delta),
				})
			}
		}
	}
	return vs
}

func hasKPIUnit(delta string) bool {
	for _, u := range kpiUnits {
		if strings.HasSuffix(delta, u) {
			return true
		}
	}
	return false
}

// R6: per-field character ranges. Over max is an error, under min a
// warning. Empty fields are not linted here.
func lintCharLimits(p *Plan) []Violation {
	var vs []Violation
	for i := range p.Slides {
		s := &p.Slides[i]
		vs = append(vs, lintField(i, FieldTitle, s.Title)...)
		vs = append(vs, lintField(i, FieldSubtitle, s.Subtitle)...)
		vs = append(vs, lintField(i, FieldPunchline, s.Punchline)...)
		vs = append(vs, lintField(i, FieldCTA, s.CTA)...)
		vs = append(vs, lintField(i, FieldNote, s.Note)...)
		for _, b := range s.Bullets {
			vs = append(vs, lintField(i, FieldBullet, b)...)
		}
		for _, k := range s.KPIs {
			vs = append(vs, lintField(i, FieldKPILabel, k.Label)...)
			vs = append(vs, lintField(i, FieldKPIDelta, k.Delta)...)
		}
	}
	return vs
}

func lintField(slide int, field, value string) []Violation {
	if value == "" {
		return nil
	}
	limits := charLimits[field]
	n := utf8.RuneCountInString(value)
	if n > limits.Max {
		return []Violation{{
			Rule:     "R6",
			Severity: SeverityError,
			Slide:    slide,
			Field:    field,
			Message:  fmt.Sprintf("%s dépasse %d caractères (%d)", field, limits.Max, n),
		}}
	}
	if n < limits.Min {
		return []Violation{{
			Rule:     "R6",
			Severity: SeverityWarning,
			Slide:    slide,
			Field:    field,
			Message:  fmt.Sprintf("%s sous %d caractères (%d)", field, limits.Min, n),
		}}
	}
	return nil
}

// R7: the problem slide should not out-bullet the solution slide, and its
// bullets must state the problem, not sell the fix.
func lintProblemSolutionBalance(p *Plan) []Violation {
	var vs []Violation
	problems := slidesOfKind(p, SlideProblem)
	solutions := slidesOfKind(p, SlideSolution)
	if len(problems) > 0 && len(solutions) > 0 {
		pb := len(p.Slides[problems[0]].Bullets)
		sb := len(p.Slides[solutions[0]].Bullets)
		if pb > sb {
			vs = append(vs, Violation{
				Rule:     "R7",
				Severity: SeverityWarning,
				Slide:    problems[0],
				Message:  fmt.Sprintf("la slide problème a plus de bullets (%d) que la slide solution (%d)", pb, sb),
			})
		}
	}
	for _, i := range problems {
		for _, b := range p.Slides[i].Bullets {
			for _, kw := range solutionSpeak {
				if containsFold(b, kw) {
					vs = append(vs, Violation{
						Rule:     "R7",
						Severity: SeverityWarning,
						Slide:    i,
						Field:    FieldBullet,
						Message:  fmt.Sprintf("bullet problème formulé comme une solution (%q)", kw),
					})
				}
			}
		}
	}
	return vs
}

// R8: no hyperbolic superlatives, slides and captions included.
func lintSuperlatives(p *Plan) []Violation {
	var vs []Violation
	for i := range p.Slides {
		text := slideText(&p.Slides[i])
		for _, sup := range superlatives {
			if containsFold(text, sup) {
				vs = append(vs, Violation{
					Rule:     "R8",
					Severity: SeverityWarning,
					Slide:    i,
					Message:  fmt.Sprintf("superlatif %q", sup),
				})
			}
		}
	}
	for _, c := range p.Captions {
		for _, sup := range superlatives {
			if containsFold(c, sup) {
				vs = append(vs, Violation{
					Rule:     "R8",
					Severity: SeverityWarning,
					Slide:    -1,
					Message:  fmt.Sprintf("superlatif %q dans une légende", sup),
				})
			}
		}
	}
	return vs
}
