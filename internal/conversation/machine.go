package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alfielabs/alfie-backend/internal/logging"
)

// TopicConfidenceThreshold gates free-text carousel subjects: below it the
// machine declines the value and re-asks with examples rather than guess.
const TopicConfidenceThreshold = 0.7

// TopicScorer rates how confidently a free-text reply reads as a usable
// carousel subject.
type TopicScorer interface {
	ScoreTopic(ctx context.Context, text string) (float64, error)
}

type Output struct {
	// Ack is the turn-specific reaction; the next question is computed
	// separately, after the new context is persisted.
	Ack string
	// Confirmed is set when the confirming state received an affirmative
	// reply; the caller materializes the order.
	Confirmed bool
}

const (
	fieldObjective  = "objective"
	fieldFormat     = "format"
	fieldStyle      = "style"
	fieldSubject    = "subject"
	fieldSlideCount = "slideCount"
	fieldTone       = "tone"
)

type fieldSpec struct {
	name     string
	required bool
}

var imageFields = []fieldSpec{
	{fieldObjective, true},
	{fieldFormat, false},
	{fieldStyle, false},
}

var carouselFields = []fieldSpec{
	{fieldSubject, true},
	{fieldSlideCount, false},
	{fieldTone, false},
}

func pendingField(fields []fieldSpec, done []string) *fieldSpec {
	for i := range fields {
		found := false
		for _, d := range done {
			if d == fields[i].name {
				found = true
				break
			}
		}
		if !found {
			return &fields[i]
		}
	}
	return nil
}

// Apply advances the machine one turn: (state, context, input) →
// (state', context', output). It never touches storage; the caller
// persists the replacement record before asking for the next question.
func Apply(ctx context.Context, state State, c Context, input string, scorer TopicScorer, log *logging.Logger) (State, Context, Output) {
	if log == nil {
		log = logging.Nop()
	}
	input = strings.TrimSpace(input)

	switch state {
	case StateInitial:
		return applyInitial(c, input)
	case StateCollectingImage:
		return applyImageAnswer(c, input)
	case StateCollectingCarousel:
		return applyCarouselAnswer(ctx, c, input, scorer, log)
	case StateConfirming:
		return applyConfirmation(c, input)
	case StateGenerating:
		return state, c, Output{Ack: "La génération est en cours, vos visuels arrivent dans votre bibliothèque."}
	default:
		// unknown stored state: restart rather than guess
		return StateInitial, Context{}, Output{Ack: "Reprenons depuis le début."}
	}
}

func applyInitial(c Context, input string) (State, Context, Output) {
	intent := ParseIntent(input)
	if intent == nil {
		return StateInitial, c, Output{}
	}

	next := Context{
		NumImages:    intent.Images,
		NumCarousels: intent.Carousels,
	}
	if intent.Images > 0 {
		next.Images = make([]ImageBrief, intent.Images)
	}
	if intent.Carousels > 0 {
		next.Carousels = make([]CarouselBrief, intent.Carousels)
	}

	ack := fmt.Sprintf("C'est noté : %s.", describeCounts(intent.Images, intent.Carousels))
	// images take priority when both are requested
	if intent.Images > 0 {
		return StateCollectingImage, next, Output{Ack: ack}
	}
	return StateCollectingCarousel, next, Output{Ack: ack}
}

func describeCounts(images, carousels int) string {
	var parts []string
	if images > 0 {
		parts = append(parts, fmt.Sprintf("%d image(s)", images))
	}
	if carousels > 0 {
		parts = append(parts, fmt.Sprintf("%d carrousel(s)", carousels))
	}
	return strings.Join(parts, " et ")
}

func applyImageAnswer(c Context, input string) (State, Context, Output) {
	i := c.CurrentImageIndex
	if i >= len(c.Images) {
		return advanceFromImages(c)
	}
	item := &c.Images[i]
	field := pendingField(imageFields, item.Done)
	if field == nil {
		return completeImageItem(c)
	}

	if IsSkip(input) {
		if field.required {
			return StateCollectingImage, c, Output{Ack: "Ce point est nécessaire pour bien cadrer le visuel."}
		}
		item.Done = append(item.Done, field.name)
	} else {
		switch field.name {
		case fieldObjective:
			item.Objective = input
		case fieldFormat:
			item.Format = input
		case fieldStyle:
			item.Style = input
		}
		item.Done = append(item.Done, field.name)
	}

	if pendingField(imageFields, item.Done) == nil {
		return completeImageItem(c)
	}
	return StateCollectingImage, c, Output{}
}

func imageItemComplete(b *ImageBrief) bool {
	return pendingField(imageFields, b.Done) == nil && b.Objective != ""
}

func completeImageItem(c Context) (State, Context, Output) {
	if !imageItemComplete(&c.Images[c.CurrentImageIndex]) {
		// a required field was skipped: re-open it
		b := &c.Images[c.CurrentImageIndex]
		b.Done = removeField(b.Done, fieldObjective)
		return StateCollectingImage, c, Output{}
	}
	c.CurrentImageIndex++
	if c.CurrentImageIndex >= c.NumImages {
		return advanceFromImages(c)
	}
	return StateCollectingImage, c, Output{Ack: fmt.Sprintf("Image %d complète.", c.CurrentImageIndex)}
}

func advanceFromImages(c Context) (State, Context, Output) {
	if c.NumCarousels > 0 && c.CurrentCarouselIndex < c.NumCarousels {
		return StateCollectingCarousel, c, Output{Ack: "Toutes les images sont cadrées, passons aux carrousels."}
	}
	return StateConfirming, c, Output{Ack: "Tout est cadré."}
}

func applyCarouselAnswer(ctx context.Context, c Context, input string, scorer TopicScorer, log *logging.Logger) (State, Context, Output) {
	j := c.CurrentCarouselIndex
	if j >= len(c.Carousels) {
		return advanceFromCarousels(c)
	}
	item := &c.Carousels[j]
	field := pendingField(carouselFields, item.Done)
	if field == nil {
		return completeCarouselItem(c)
	}

	if IsSkip(input) {
		if field.required {
			return StateCollectingCarousel, c, Output{Ack: "Le sujet est indispensable pour écrire le carrousel."}
		}
		if field.name == fieldSlideCount {
			item.SlideCount = 5
		}
		item.Done = append(item.Done, field.name)
	} else {
		switch field.name {
		case fieldSubject:
			conf := 1.0
			if scorer != nil {
				score, err := scorer.ScoreTopic(ctx, input)
				if err != nil {
					// gate unavailable: accept rather than block the user
					log.Warn("topic scorer failed, accepting subject", "err", err)
				} else {
					conf = score
				}
			}
			if conf < TopicConfidenceThreshold {
				return StateCollectingCarousel, c, Output{
					Ack: "Je ne suis pas sûr de bien saisir le sujet. Des exemples qui marchent bien : \"les 5 erreurs à éviter avant d'adopter un chiot\", \"comment choisir ses croquettes\".",
				}
			}
			item.Subject = input
		case fieldSlideCount:
			item.SlideCount = parseSlideCount(input)
		case fieldTone:
			item.Tone = input
		}
		item.Done = append(item.Done, field.name)
	}

	if pendingField(carouselFields, item.Done) == nil {
		return completeCarouselItem(c)
	}
	return StateCollectingCarousel, c, Output{}
}

func parseSlideCount(input string) int {
	for _, f := range strings.Fields(input) {
		if n, err := strconv.Atoi(strings.Trim(f, ".,")); err == nil {
			if n >= 1 && n <= 10 {
				return n
			}
		}
	}
	return 5
}

func carouselItemComplete(b *CarouselBrief) bool {
	return pendingField(carouselFields, b.Done) == nil && b.Subject != ""
}

func completeCarouselItem(c Context) (State, Context, Output) {
	if !carouselItemComplete(&c.Carousels[c.CurrentCarouselIndex]) {
		b := &c.Carousels[c.CurrentCarouselIndex]
		b.Done = removeField(b.Done, fieldSubject)
		return StateCollectingCarousel, c, Output{}
	}
	c.CurrentCarouselIndex++
	if c.CurrentCarouselIndex >= c.NumCarousels {
		return advanceFromCarousels(c)
	}
	return StateCollectingCarousel, c, Output{Ack: fmt.Sprintf("Carrousel %d complet.", c.CurrentCarouselIndex)}
}

func advanceFromCarousels(c Context) (State, Context, Output) {
	return StateConfirming, c, Output{Ack: "Tout est cadré."}
}

func applyConfirmation(c Context, input string) (State, Context, Output) {
	if IsAffirmative(input) {
		return StateConfirming, c, Output{Confirmed: true, Ack: "C'est parti, je lance la génération !"}
	}
	// anything but a clear yes restarts from scratch
	return StateInitial, Context{}, Output{Ack: "Pas de souci, on reprend depuis le début. Décrivez-moi ce que vous voulez créer."}
}

func removeField(done []string, field string) []string {
	out := done[:0]
	for _, d := range done {
		if d != field {
			out = append(out, d)
		}
	}
	return out
}

// NextQuestion is a pure function of (state, context): it inspects the
// current item's unanswered fields and phrases the single next question.
func NextQuestion(state State, c Context) string {
	switch state {
	case StateInitial:
		return "Que souhaitez-vous créer ? Dites-moi par exemple : \"3 images et 1 carrousel\"."

	case StateCollectingImage:
		i := c.CurrentImageIndex
		if i >= len(c.Images) {
			return ""
		}
		field := pendingField(imageFields, c.Images[i].Done)
		if field == nil {
			return ""
		}
		switch field.name {
		case fieldObjective:
			return fmt.Sprintf("Quel est l'objectif de l'image %d ? (annoncer une promo, présenter un produit…)", i+1)
		case fieldFormat:
			return fmt.Sprintf("Quel format pour l'image %d ? (carré, portrait, paysage — \"skip\" pour laisser Alfie choisir)", i+1)
		default:
			return fmt.Sprintf("Quel style pour l'image %d ? (photo, illustration, minimaliste — \"skip\" pour le style de la marque)", i+1)
		}

	case StateCollectingCarousel:
		j := c.CurrentCarouselIndex
		if j >= len(c.Carousels) {
			return ""
		}
		field := pendingField(carouselFields, c.Carousels[j].Done)
		if field == nil {
			return ""
		}
		switch field.name {
		case fieldSubject:
			return fmt.Sprintf("Quel est le sujet du carrousel %d ?", j+1)
		case fieldSlideCount:
			return fmt.Sprintf("Combien de slides pour le carrousel %d ? (3 ou 5 recommandé — \"skip\" pour 5)", j+1)
		default:
			return fmt.Sprintf("Quel ton pour le carrousel %d ? (complice, expert, direct — \"skip\" pour le ton de la marque)", j+1)
		}

	case StateConfirming:
		return recap(c)

	case StateGenerating:
		return ""
	}
	return ""
}

func recap(c Context) string {
	var b strings.Builder
	b.WriteString("Récapitulatif de votre commande :\n")
	for i, img := range c.Images {
		fmt.Fprintf(&b, "- Image %d : %s", i+1, img.Objective)
		if img.Format != "" {
			fmt.Fprintf(&b, " (%s)", img.Format)
		}
		b.WriteString("\n")
	}
	for j, car := range c.Carousels {
		count := car.SlideCount
		if count == 0 {
			count = 5
		}
		fmt.Fprintf(&b, "- Carrousel %d : %s, %d slides\n", j+1, car.Subject, count)
	}
	b.WriteString("Répondez \"oui\" pour lancer la génération, ou autre chose pour tout reprendre.")
	return b.String()
}
