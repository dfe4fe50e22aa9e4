package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/logging"
	"github.com/alfielabs/alfie-backend/internal/models"
	"github.com/alfielabs/alfie-backend/internal/store/redisstore"
)

// ErrForbidden: caller does not own the brand. Checked before any quota
// logic, never reported as an insufficient-credits condition.
var ErrForbidden = errors.New("quota: brand not owned by caller")

type InsufficientError struct {
	Remaining int
	Required  int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("quota: insufficient woofs (remaining=%d required=%d)", e.Remaining, e.Required)
}

type ConsumeResult struct {
	Remaining   int  `json:"remaining_woofs"`
	Limit       int  `json:"woofs_limit"`
	Used        int  `json:"woofs_used"`
	Threshold80 bool `json:"threshold_80"`
}

type Summary struct {
	Remaining int    `json:"remaining_woofs"`
	Limit     int    `json:"woofs_limit"`
	Used      int    `json:"woofs_used"`
	Period    string `json:"period"`
}

// PeriodKey returns the billing period for t, e.g. "2026-08".
func PeriodKey(t time.Time) string { return t.Format("2006-01") }

type Ledger struct {
	db           *gorm.DB
	cache        *redisstore.Store
	defaultLimit int
	log          *logging.Logger

	// overridable in tests
	now func() time.Time
}

func NewLedger(db *gorm.DB, cache *redisstore.Store, defaultLimit int, log *logging.Logger) *Ledger {
	if defaultLimit <= 0 {
		defaultLimit = 150
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Ledger{db: db, cache: cache, defaultLimit: defaultLimit, log: log, now: time.Now}
}

func (l *Ledger) brandFor(ctx context.Context, userID uint64, brandID string) (*models.Brand, error) {
	var b models.Brand
	if err := l.db.WithContext(ctx).First(&b, "id = ?", brandID).Error; err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return &b, nil
}

func (l *Ledger) limitFor(b *models.Brand) int {
	if b.WoofsLimit > 0 {
		return b.WoofsLimit
	}
	return l.defaultLimit
}

// ensureCounter makes sure the (brand, period) row exists so the guarded
// increment has something to update. Safe under concurrent creators: the
// unique index rejects the loser, who then finds the winner's row.
func (l *Ledger) ensureCounter(ctx context.Context, brandID, period string) error {
	err := l.db.WithContext(ctx).Create(&Counter{BrandID: brandID, Period: period}).Error
	if err == nil {
		return nil
	}
	var cnt int64
	if cErr := l.db.WithContext(ctx).Model(&Counter{}).
		Where("brand_id = ? AND period = ?", brandID, period).
		Count(&cnt).Error; cErr != nil {
		return cErr
	}
	if cnt > 0 {
		return nil
	}
	return errors.Wrap(err, "create quota counter")
}

// Consume atomically checks and spends cost Woofs for the brand's current
// period. The ownership check runs first; unlimited callers skip the limit
// guard but still increment the counter.
func (l *Ledger) Consume(ctx context.Context, userID uint64, unlimited bool, brandID string, cost int, reason string, metadata map[string]any) (*ConsumeResult, error) {
	if cost <= 0 {
		return nil, errors.New("quota: cost must be positive")
	}

	brand, err := l.brandFor(ctx, userID, brandID)
	if err != nil {
		return nil, err
	}
	limit := l.limitFor(brand)
	period := PeriodKey(l.now())

	if err := l.ensureCounter(ctx, brandID, period); err != nil {
		return nil, err
	}

	// Single guarded increment. Two concurrent spenders cannot both pass:
	// the WHERE clause re-validates the balance inside the same statement
	// that applies it.
	q := l.db.WithContext(ctx).Model(&Counter{}).
		Where("brand_id = ? AND period = ?", brandID, period)
	if !unlimited {
		q = q.Where("woofs_used + ? <= ?", cost, limit)
	}
	res := q.UpdateColumn("woofs_used", gorm.Expr("woofs_used + ?", cost))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var c Counter
		if err := l.db.WithContext(ctx).
			Where("brand_id = ? AND period = ?", brandID, period).
			First(&c).Error; err != nil {
			return nil, err
		}
		remaining := limit - c.WoofsUsed
		if remaining < 0 {
			remaining = 0
		}
		return nil, &InsufficientError{Remaining: remaining, Required: cost}
	}

	var c Counter
	if err := l.db.WithContext(ctx).
		Where("brand_id = ? AND period = ?", brandID, period).
		First(&c).Error; err != nil {
		return nil, err
	}

	var metaJSON datatypes.JSON
	if metadata != nil {
		if b, mErr := json.Marshal(metadata); mErr == nil {
			metaJSON = b
		}
	}
	if err := l.db.WithContext(ctx).Create(&UsageEvent{
		UserID:   userID,
		BrandID:  brandID,
		Period:   period,
		Reason:   reason,
		Cost:     cost,
		Metadata: metaJSON,
	}).Error; err != nil {
		// audit row failure must not undo the spend
		l.log.Error("quota usage event insert failed", "brand_id", brandID, "err", err)
	}

	remaining := limit - c.WoofsUsed
	if remaining < 0 {
		remaining = 0
	}
	out := &ConsumeResult{
		Remaining: remaining,
		Limit:     limit,
		Used:      c.WoofsUsed,
	}

	threshold := float64(limit) * 0.8
	if float64(c.WoofsUsed) >= threshold && float64(c.WoofsUsed-cost) < threshold {
		out.Threshold80 = l.markThreshold(ctx, brandID, period)
	}

	l.invalidateSummary(ctx, brandID, period)
	return out, nil
}

// GetSummary returns the brand's balance for the current period, cached
// briefly in redis.
func (l *Ledger) GetSummary(ctx context.Context, userID uint64, brandID string) (*Summary, error) {
	brand, err := l.brandFor(ctx, userID, brandID)
	if err != nil {
		return nil, err
	}
	limit := l.limitFor(brand)
	period := PeriodKey(l.now())

	key := summaryKey(brandID, period)
	if l.cache != nil {
		var cached Summary
		if err := l.cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	var c Counter
	used := 0
	err = l.db.WithContext(ctx).
		Where("brand_id = ? AND period = ?", brandID, period).
		First(&c).Error
	switch {
	case err == nil:
		used = c.WoofsUsed
	case errors.Is(err, gorm.ErrRecordNotFound):
		// nothing consumed yet this period
	default:
		return nil, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	s := &Summary{Remaining: remaining, Limit: limit, Used: used, Period: period}
	if l.cache != nil {
		_ = l.cache.SetJSON(ctx, key, s, 30*time.Second)
	}
	return s, nil
}

func summaryKey(brandID, period string) string {
	return "quota:sum:" + brandID + ":" + period
}

// markThreshold dedups the 80% upsell signal: only the spend that first
// crosses the line reports it.
func (l *Ledger) markThreshold(ctx context.Context, brandID, period string) bool {
	if l.cache == nil {
		return true
	}
	set, err := l.cache.SetNX(ctx, "quota:thresh80:"+brandID+":"+period, 35*24*time.Hour)
	if err != nil {
		return true
	}
	return set
}

func (l *Ledger) invalidateSummary(ctx context.Context, brandID, period string) {
	if l.cache == nil {
		return
	}
	_ = l.cache.Delete(ctx, summaryKey(brandID, period))
}
