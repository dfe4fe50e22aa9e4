package carousel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/alfielabs/alfie-backend/internal/ai"
	"github.com/alfielabs/alfie-backend/internal/logging"
)

const maxAttempts = 3

type Request struct {
	Prompt     string         `json:"prompt"`
	BrandKit   map[string]any `json:"brandKit,omitempty"`
	SlideCount int            `json:"slideCount"`
}

type Generator struct {
	provider ai.Provider
	log      *logging.Logger
}

func NewGenerator(provider ai.Provider, log *logging.Logger) *Generator {
	if log == nil {
		log = logging.Nop()
	}
	return &Generator{provider: provider, log: log}
}

// Generate produces a linted plan for the request. The loop is strictly
// sequential and bounded: generate, lint, auto-correct, re-lint, then
// re-prompt with the violations. Exhausting every attempt yields the
// static fallback, never an error the user sees.
func (g *Generator) Generate(ctx context.Context, req Request) (*Plan, error) {
	globals := MergeGlobals(DefaultGlobals(), req.BrandKit)
	kinds := ArchetypesFor(req.SlideCount)

	correction := ""
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := g.provider.Complete(ctx, systemPrompt, userPrompt(req.Prompt, globals, kinds, correction))
		if err != nil {
			g.log.Warn("plan generation call failed", "attempt", attempt, "err", err)
			continue
		}

		plan, err := parsePlan(raw, globals, kinds)
		if err != nil {
			g.log.Warn("plan parse failed", "attempt", attempt, "err", err)
			correction = "La réponse précédente n'était pas un JSON valide au format demandé."
			continue
		}

		vs := Lint(plan)
		if !HasErrors(vs) {
			return plan, nil
		}

		if AutoCorrect(plan) {
			vs = Lint(plan)
			if !HasErrors(vs) {
				return plan, nil
			}
		}

		g.log.Info("plan failed linting", "attempt", attempt, "violations", len(vs))
		correction = correctionPrompt(vs)
	}

	g.log.Warn("plan generation exhausted, using fallback", "slide_count", req.SlideCount)
	return FallbackPlan(req.SlideCount, globals), nil
}

// MergeGlobals layers brand-kit overrides over the product defaults.
// Terminology and banned words are additive, the rest replaces.
func MergeGlobals(base Globals, kit map[string]any) Globals {
	if kit == nil {
		return base
	}
	if v, ok := kit["audience"].(string); ok && v != "" {
		base.Audience = v
	}
	if v, ok := kit["promise"].(string); ok && v != "" {
		base.Promise = v
	}
	if v, ok := kit["cta"].(string); ok && v != "" {
		base.CTA = v
	}
	base.Terminology = append(base.Terminology, stringList(kit["terminology"])...)
	base.BannedWords = append(base.BannedWords, stringList(kit["banned_words"])...)
	return base
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

const systemPrompt = `Tu es le rédacteur d'Alfie, un studio de création de contenu.
Tu réponds uniquement avec un objet JSON, sans texte autour, au format:
{"slides":[{"kind":"...","title":"...","subtitle":"...","punchline":"...","bullets":["..."],"kpis":[{"label":"...","delta":"..."}],"cta":"...","note":"..."}],"captions":["..."]}`

func userPrompt(prompt string, g Globals, kinds []SlideKind, correction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sujet: %s\n", prompt)
	fmt.Fprintf(&b, "Audience: %s\n", g.Audience)
	fmt.Fprintf(&b, "Promesse à reprendre sur la slide solution ou cta: %s\n", g.Promise)
	fmt.Fprintf(&b, "CTA obligatoire (hero et cta, identique): %s\n", g.CTA)
	fmt.Fprintf(&b, "Lexique à utiliser: %s\n", strings.Join(g.Terminology, ", "))
	fmt.Fprintf(&b, "Mots interdits: %s\n", strings.Join(g.BannedWords, ", "))
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	fmt.Fprintf(&b, "Slides attendues, dans l'ordre: %s\n", strings.Join(names, ", "))
	b.WriteString("Longueurs (caractères): title 15-60, subtitle 25-100, punchline 25-80, bullet 15-60, kpi label 8-30, kpi delta 2-12 avec unité (%, pts, ×), cta 10-30, note 80-180.\n")
	b.WriteString("Une légende (caption) par slide.\n")
	if correction != "" {
		b.WriteString("\nCorrections à appliquer:\n")
		b.WriteString(correction)
		b.WriteString("\n")
	}
	return b.String()
}

func correctionPrompt(vs []Violation) string {
	var b strings.Builder
	for _, v := range vs {
		if v.Severity != SeverityError {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", v.Rule, v.Message)
	}
	return b.String()
}

// parsePlan decodes the model output into a Plan, coercing slide kinds
// onto the requested archetypes by position.
func parsePlan(raw string, globals Globals, kinds []SlideKind) (*Plan, error) {
	raw = stripFences(raw)

	var decoded struct {
		Slides   []Slide  `json:"slides"`
		Captions []string `json:"captions"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.Wrap(err, "decode plan")
	}
	if len(decoded.Slides) != len(kinds) {
		return nil, errors.Errorf("expected %d slides, got %d", len(kinds), len(decoded.Slides))
	}
	for i := range decoded.Slides {
		decoded.Slides[i].Kind = kinds[i]
	}
	return &Plan{Globals: globals, Slides: decoded.Slides, Captions: decoded.Captions}, nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	return strings.TrimSpace(raw)
}
