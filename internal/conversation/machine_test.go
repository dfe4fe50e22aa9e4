package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fixedScorer struct {
	score float64
	err   error
}

func (s fixedScorer) ScoreTopic(ctx context.Context, text string) (float64, error) {
	_ = ctx
	_ = text
	return s.score, s.err
}

func TestApply_InitialIntent(t *testing.T) {
	state, c, out := Apply(context.Background(), StateInitial, Context{}, "Je veux 3 images et 1 carrousel", nil, nil)
	if state != StateCollectingImage {
		t.Fatalf("state = %s, want %s", state, StateCollectingImage)
	}
	if c.NumImages != 3 || c.NumCarousels != 1 {
		t.Fatalf("counts = %d/%d, want 3/1", c.NumImages, c.NumCarousels)
	}
	if len(c.Images) != 3 || len(c.Carousels) != 1 {
		t.Fatalf("slots = %d/%d, want 3/1", len(c.Images), len(c.Carousels))
	}
	if out.Ack == "" {
		t.Fatalf("expected an ack for a recognized intent")
	}
}

func TestApply_InitialUnparsedStaysPut(t *testing.T) {
	state, c, _ := Apply(context.Background(), StateInitial, Context{}, "bonjour !", nil, nil)
	if state != StateInitial {
		t.Fatalf("state = %s, want %s", state, StateInitial)
	}
	if c.NumImages != 0 || c.NumCarousels != 0 {
		t.Fatalf("context should be untouched, got %+v", c)
	}
}

func TestApply_ImageFieldsAdvanceAcrossItems(t *testing.T) {
	ctx := context.Background()
	state, c, _ := Apply(ctx, StateInitial, Context{}, "2 images", nil, nil)
	if state != StateCollectingImage {
		t.Fatalf("state = %s", state)
	}

	// first image: objective, format, style
	state, c, _ = Apply(ctx, state, c, "annoncer la promo de rentrée", nil, nil)
	state, c, _ = Apply(ctx, state, c, "carré", nil, nil)
	state, c, out := Apply(ctx, state, c, "photo", nil, nil)
	if state != StateCollectingImage {
		t.Fatalf("after first item: state = %s, want still collecting", state)
	}
	if c.CurrentImageIndex != 1 {
		t.Fatalf("CurrentImageIndex = %d, want 1", c.CurrentImageIndex)
	}
	if out.Ack == "" {
		t.Fatalf("expected completion ack for image 1")
	}
	if q := NextQuestion(state, c); q == "" || !strings.Contains(q, "image 2") {
		t.Fatalf("next question should target image 2, got %q", q)
	}

	// second image with skips on the optional fields
	state, c, _ = Apply(ctx, state, c, "présenter le produit", nil, nil)
	state, c, _ = Apply(ctx, state, c, "skip", nil, nil)
	state, c, _ = Apply(ctx, state, c, "skip", nil, nil)
	if state != StateConfirming {
		t.Fatalf("state = %s, want %s", state, StateConfirming)
	}
	if c.Images[1].Format != "" || c.Images[1].Style != "" {
		t.Fatalf("skipped fields should stay empty: %+v", c.Images[1])
	}
}

func TestApply_RequiredFieldCannotBeSkipped(t *testing.T) {
	ctx := context.Background()
	state, c, _ := Apply(ctx, StateInitial, Context{}, "1 image", nil, nil)

	state, c, out := Apply(ctx, state, c, "skip", nil, nil)
	if state != StateCollectingImage {
		t.Fatalf("state = %s, want still collecting", state)
	}
	if out.Ack == "" {
		t.Fatalf("expected a push-back when skipping a required field")
	}
	if len(c.Images[0].Done) != 0 {
		t.Fatalf("objective must stay pending, done=%v", c.Images[0].Done)
	}
}

func TestApply_CarouselSubjectGate(t *testing.T) {
	ctx := context.Background()
	state, c, _ := Apply(ctx, StateInitial, Context{}, "1 carrousel", nil, nil)
	if state != StateCollectingCarousel {
		t.Fatalf("state = %s", state)
	}

	// low confidence: declined, field stays open
	state, c, out := Apply(ctx, state, c, "euh", fixedScorer{score: 0.3}, nil)
	if state != StateCollectingCarousel {
		t.Fatalf("state = %s, want still collecting", state)
	}
	if c.Carousels[0].Subject != "" {
		t.Fatalf("subject should be rejected, got %q", c.Carousels[0].Subject)
	}
	if out.Ack == "" {
		t.Fatalf("expected examples when the subject is declined")
	}

	// scorer failure: accept rather than block
	state, c, _ = Apply(ctx, state, c, "les 5 erreurs à éviter avant d'adopter un chiot", fixedScorer{err: errors.New("boom")}, nil)
	if c.Carousels[0].Subject == "" {
		t.Fatalf("subject should be accepted when the scorer is unavailable")
	}
	_ = state
}

func TestApply_CarouselSlideCountDefaults(t *testing.T) {
	ctx := context.Background()
	state, c, _ := Apply(ctx, StateInitial, Context{}, "1 carrousel", nil, nil)
	state, c, _ = Apply(ctx, state, c, "comment choisir ses croquettes", fixedScorer{score: 0.95}, nil)
	state, c, _ = Apply(ctx, state, c, "skip", nil, nil)
	if c.Carousels[0].SlideCount != 5 {
		t.Fatalf("skipped slide count should default to 5, got %d", c.Carousels[0].SlideCount)
	}
	state, c, _ = Apply(ctx, state, c, "complice", nil, nil)
	if state != StateConfirming {
		t.Fatalf("state = %s, want %s", state, StateConfirming)
	}
	if q := NextQuestion(state, c); !strings.Contains(q, "Récapitulatif") {
		t.Fatalf("confirming question should recap, got %q", q)
	}
}

func TestApply_ConfirmationYesAndReset(t *testing.T) {
	ctx := context.Background()
	c := Context{
		NumImages:         1,
		Images:            []ImageBrief{{Objective: "promo", Done: []string{"objective", "format", "style"}}},
		CurrentImageIndex: 1,
	}

	state, _, out := Apply(ctx, StateConfirming, c, "oui !", nil, nil)
	if !out.Confirmed {
		t.Fatalf("affirmative reply should confirm")
	}
	if state != StateConfirming {
		t.Fatalf("state = %s; the caller moves to generating once the order exists", state)
	}

	state, c2, out := Apply(ctx, StateConfirming, c, "en fait non", nil, nil)
	if out.Confirmed {
		t.Fatalf("non-affirmative reply must not confirm")
	}
	if state != StateInitial {
		t.Fatalf("state = %s, want %s", state, StateInitial)
	}
	if c2.NumImages != 0 || len(c2.Images) != 0 {
		t.Fatalf("context should be cleared on reset, got %+v", c2)
	}
}

func TestParseSlideCount(t *testing.T) {
	cases := map[string]int{
		"5":             5,
		"3 slides":      3,
		"une dizaine":   5,
		"12":            5,
		"7, je pense":   7,
		"0":             5,
		"plutôt 4 vues": 4,
	}
	for in, want := range cases {
		if got := parseSlideCount(in); got != want {
			t.Errorf("parseSlideCount(%q) = %d, want %d", in, got, want)
		}
	}
}
