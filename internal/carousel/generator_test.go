package carousel

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	replies []string
	calls   int
	prompts []string
}

func (p *scriptedProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	_ = ctx
	_ = system
	p.prompts = append(p.prompts, prompt)
	reply := p.replies[len(p.replies)-1]
	if p.calls < len(p.replies) {
		reply = p.replies[p.calls]
	}
	p.calls++
	return reply, nil
}

func planJSON(t *testing.T, p *Plan) string {
	t.Helper()
	b, err := json.Marshal(struct {
		Slides   []Slide  `json:"slides"`
		Captions []string `json:"captions"`
	}{p.Slides, p.Captions})
	require.NoError(t, err)
	return string(b)
}

func TestAutoCorrect_TruncatesAndForcesCTA(t *testing.T) {
	p := cleanPlan()
	p.Slides[0].Title = "Alfie crée, planifie et publie tous les visuels de votre marque en continu"
	p.Slides[4].CTA = "" // model forgot the final CTA
	p.Slides[3].KPIs[0].Delta = "-80"

	changed := AutoCorrect(p)
	require.True(t, changed)

	assert.LessOrEqual(t, len([]rune(p.Slides[0].Title)), 60)
	assert.Equal(t, CanonicalCTA, p.Slides[4].CTA, "hero and final CTA must be re-aligned")
	assert.Equal(t, "-80%", p.Slides[3].KPIs[0].Delta)

	vs := Lint(p)
	assert.False(t, HasErrors(vs), "auto-corrected plan should pass: %+v", vs)

	assert.False(t, AutoCorrect(p), "second pass has nothing left to fix")
}

func TestFallbackPlan_AlwaysPassesLint(t *testing.T) {
	for _, count := range []int{3, 5, 4, 7, 0} {
		p := FallbackPlan(count, DefaultGlobals())
		vs := Lint(p)
		assert.False(t, HasErrors(vs), "count=%d violations=%+v", count, vs)
		assert.Len(t, p.Captions, len(p.Slides))
	}
}

func TestFallbackPlan_SurvivesHostileBrandKit(t *testing.T) {
	g := MergeGlobals(DefaultGlobals(), map[string]any{
		"promise": "une promesse que la copie statique ne contient pas",
		"cta":     "Un appel à l'action beaucoup trop long pour une slide",
	})
	p := FallbackPlan(5, g)
	vs := Lint(p)
	assert.False(t, HasErrors(vs), "violations=%+v", vs)
}

func TestGenerate_FirstAttemptClean(t *testing.T) {
	prov := &scriptedProvider{replies: []string{"```json\n" + planJSON(t, cleanPlan()) + "\n```"}}
	g := NewGenerator(prov, nil)

	plan, err := g.Generate(context.Background(), Request{Prompt: "croquettes", SlideCount: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, prov.calls)
	assert.Len(t, plan.Slides, 5)
	assert.Equal(t, SlideHero, plan.Slides[0].Kind)
}

func TestGenerate_RetriesWithViolationsThenSucceeds(t *testing.T) {
	bad := cleanPlan()
	// promise stripped from the solution slide and uncorrectable by the
	// mechanical pass
	bad.Slides[2].Bullets = []string{
		"Décrivez votre besoin dans le chat",
		"Recevez vos contenus sans attendre",
		"Chaque carrousel respecte votre marque",
	}

	prov := &scriptedProvider{replies: []string{
		planJSON(t, bad),
		planJSON(t, cleanPlan()),
	}}
	g := NewGenerator(prov, nil)

	plan, err := g.Generate(context.Background(), Request{Prompt: "croquettes", SlideCount: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, prov.calls)
	assert.False(t, HasErrors(Lint(plan)))

	// the second prompt must carry the violations back to the model
	require.Len(t, prov.prompts, 2)
	assert.Contains(t, prov.prompts[1], "R1")
}

func TestGenerate_ExhaustionFallsBack(t *testing.T) {
	prov := &scriptedProvider{replies: []string{"pas du JSON"}}
	g := NewGenerator(prov, nil)

	plan, err := g.Generate(context.Background(), Request{Prompt: "croquettes", SlideCount: 3})
	require.NoError(t, err)
	assert.Equal(t, maxAttempts, prov.calls)
	require.Len(t, plan.Slides, 3)
	assert.False(t, HasErrors(Lint(plan)), "fallback must be clean")
	assert.Equal(t, SlideHero, plan.Slides[0].Kind)
}

func TestGenerate_CoercesKindsByPosition(t *testing.T) {
	shuffled := cleanPlan()
	for i := range shuffled.Slides {
		shuffled.Slides[i].Kind = "n'importe quoi"
	}
	prov := &scriptedProvider{replies: []string{planJSON(t, shuffled)}}
	g := NewGenerator(prov, nil)

	plan, err := g.Generate(context.Background(), Request{Prompt: "croquettes", SlideCount: 5})
	require.NoError(t, err)
	want := ArchetypesFor(5)
	for i, s := range plan.Slides {
		assert.Equal(t, want[i], s.Kind)
	}
}

func TestMergeGlobals_AdditiveLists(t *testing.T) {
	g := MergeGlobals(DefaultGlobals(), map[string]any{
		"audience":     "éleveurs canins",
		"terminology":  []any{"croquettes"},
		"banned_words": []any{"promo flash"},
	})
	assert.Equal(t, "éleveurs canins", g.Audience)
	assert.Contains(t, g.Terminology, "Alfie")
	assert.Contains(t, g.Terminology, "croquettes")
	assert.Contains(t, g.BannedWords, "promo flash")
	// untouched fields keep their defaults
	assert.Equal(t, CanonicalCTA, g.CTA)
	assert.True(t, strings.HasPrefix(g.Promise, "des visuels"))
}
