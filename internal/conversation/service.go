package conversation

import (
	"context"

	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/logging"
)

type Service struct {
	repo   *Repo
	scorer TopicScorer
	log    *logging.Logger
}

func NewService(repo *Repo, scorer TopicScorer, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{repo: repo, scorer: scorer, log: log}
}

func (s *Service) CreateSession(ctx context.Context, userID uint64, brandID string) (*Session, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:      id,
		UserID:  userID,
		BrandID: brandID,
		State:   StateInitial,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	welcome := NextQuestion(StateInitial, Context{})
	if err := s.repo.InsertMessage(ctx, &Message{
		SessionID: id,
		UserID:    userID,
		Role:      "assistant",
		Content:   welcome,
	}); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession hides sessions the caller does not own behind not-found.
func (s *Service) GetSession(ctx context.Context, userID uint64, id string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return sess, nil
}

type TurnResult struct {
	Reply     string
	State     State
	Confirmed bool
	Session   *Session
}

// PostMessage drives one turn of the state machine. The mutated context
// is persisted before the next question is computed, so a concurrent
// duplicate turn cannot double-advance an item index.
func (s *Service) PostMessage(ctx context.Context, userID uint64, sessionID, content string) (*TurnResult, error) {
	sess, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertMessage(ctx, &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "user",
		Content:   content,
	}); err != nil {
		return nil, err
	}

	c, err := DecodeContext(sess.Context)
	if err != nil {
		return nil, err
	}

	newState, newCtx, out := Apply(ctx, sess.State, c, content, s.scorer, s.log)

	raw, err := EncodeContext(newCtx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveTurn(ctx, sessionID, newState, raw); err != nil {
		return nil, err
	}

	reply := out.Ack
	if !out.Confirmed {
		if q := NextQuestion(newState, newCtx); q != "" {
			if reply != "" {
				reply = reply + "\n\n" + q
			} else {
				reply = q
			}
		}
	}

	if err := s.repo.InsertMessage(ctx, &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "assistant",
		Content:   reply,
	}); err != nil {
		return nil, err
	}

	sess.State = newState
	sess.Context = raw
	return &TurnResult{Reply: reply, State: newState, Confirmed: out.Confirmed, Session: sess}, nil
}

func (s *Service) ListMessages(ctx context.Context, userID uint64, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, userID, sessionID, limit, beforeID)
}
