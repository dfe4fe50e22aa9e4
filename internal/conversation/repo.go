package conversation

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveTurn replaces the session's state and context in one update.
func (r *Repo) SaveTurn(ctx context.Context, id string, state State, raw datatypes.JSON) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":   state,
			"context": raw,
		}).Error
}

// LinkOrder attaches the order exactly once: the WHERE clause refuses to
// overwrite an existing link, which makes the session the hard dedup
// boundary for order creation. Returns false when another order already
// won the link.
func (r *Repo) LinkOrder(ctx context.Context, sessionID, orderID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND order_id IS NULL", sessionID).
		Updates(map[string]any{
			"order_id": orderID,
			"state":    StateGenerating,
		})
	return res.RowsAffected > 0, res.Error
}

// LinkedOrderID returns the order already attached to the session, if any.
func (r *Repo) LinkedOrderID(ctx context.Context, sessionID string) (*string, error) {
	var s Session
	if err := r.db.WithContext(ctx).Select("order_id").First(&s, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return s.OrderID, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns messages in DESC id order (newest -> oldest).
func (r *Repo) ListMessages(ctx context.Context, userID uint64, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
