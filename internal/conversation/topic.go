package conversation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/alfielabs/alfie-backend/internal/ai"
)

const topicSystemPrompt = `Tu évalues si un texte libre décrit un sujet exploitable pour un carrousel de contenu de marque.
Réponds uniquement avec un JSON: {"topic":"<sujet reformulé>","confidence":<0.0-1.0>}`

// AITopicScorer implements TopicScorer over a text-generation provider.
type AITopicScorer struct {
	provider ai.Provider
}

func NewAITopicScorer(provider ai.Provider) *AITopicScorer {
	return &AITopicScorer{provider: provider}
}

func (s *AITopicScorer) ScoreTopic(ctx context.Context, text string) (float64, error) {
	raw, err := s.provider.Complete(ctx, topicSystemPrompt, text)
	if err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out struct {
		Topic      string  `json:"topic"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return 0, errors.Wrap(err, "decode topic score")
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return 0, errors.Errorf("confidence out of range: %f", out.Confidence)
	}
	return out.Confidence, nil
}
