package library

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Upsert stores the asset. When it carries an external id and a row with
// that id already exists, the row is updated in place instead of
// duplicated.
func (r *Repo) Upsert(ctx context.Context, a *Asset) (*Asset, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	if a.ExternalID != nil && *a.ExternalID != "" {
		var existing Asset
		err := r.db.WithContext(ctx).
			Where("external_id = ?", *a.ExternalID).
			First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"url":      a.URL,
				"order_id": a.OrderID,
				"job_id":   a.JobID,
				"type":     a.Type,
				"metadata": a.Metadata,
			}
			if uErr := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; uErr != nil {
				return nil, uErr
			}
			existing.URL = a.URL
			existing.OrderID = a.OrderID
			existing.JobID = a.JobID
			existing.Type = a.Type
			existing.Metadata = a.Metadata
			return &existing, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			// fall through to insert
		default:
			return nil, err
		}
	}

	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		// a concurrent upsert may have inserted the same external id
		if a.ExternalID != nil && *a.ExternalID != "" {
			var existing Asset
			if gErr := r.db.WithContext(ctx).
				Where("external_id = ?", *a.ExternalID).
				First(&existing).Error; gErr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return a, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Asset, error) {
	var a Asset
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) ListByBrand(ctx context.Context, userID uint64, brandID string, limit int) ([]Asset, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var assets []Asset
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND brand_id = ?", userID, brandID).
		Order("created_at DESC").
		Limit(limit).
		Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}
