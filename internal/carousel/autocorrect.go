package carousel

import (
	"strings"
	"unicode/utf8"
)

// AutoCorrect applies the mechanical fixes the linter can prescribe:
// over-length fields are truncated to their max, KPI deltas get a default
// unit appended, and hero/cta slides are forced onto the canonical CTA.
// Returns whether anything changed.
func AutoCorrect(p *Plan) bool {
	changed := false

	for i := range p.Slides {
		s := &p.Slides[i]
		changed = truncateField(&s.Title, FieldTitle) || changed
		changed = truncateField(&s.Subtitle, FieldSubtitle) || changed
		changed = truncateField(&s.Punchline, FieldPunchline) || changed
		changed = truncateField(&s.CTA, FieldCTA) || changed
		changed = truncateField(&s.Note, FieldNote) || changed
		for j := range s.Bullets {
			changed = truncateField(&s.Bullets[j], FieldBullet) || changed
		}
		for j := range s.KPIs {
			changed = truncateField(&s.KPIs[j].Label, FieldKPILabel) || changed
			if s.Kind == SlideImpact && s.KPIs[j].Delta != "" && !hasKPIUnit(s.KPIs[j].Delta) {
				s.KPIs[j].Delta += "%"
				changed = true
			}
			changed = truncateField(&s.KPIs[j].Delta, FieldKPIDelta) || changed
		}
	}

	cta := p.Globals.CTA
	if cta == "" {
		cta = CanonicalCTA
	}
	for i := range p.Slides {
		s := &p.Slides[i]
		if (s.Kind == SlideHero || s.Kind == SlideCTA) && s.CTA != cta {
			s.CTA = cta
			changed = true
		}
	}

	return changed
}

func truncateField(value *string, field string) bool {
	if *value == "" {
		return false
	}
	max := charLimits[field].Max
	if utf8.RuneCountInString(*value) <= max {
		return false
	}
	runes := []rune(*value)
	*value = strings.TrimRight(string(runes[:max]), " ")
	return true
}
