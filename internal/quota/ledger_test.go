package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Brand{}, &Counter{}, &UsageEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedBrand(t *testing.T, db *gorm.DB, limit int) *models.Brand {
	t.Helper()
	b := &models.Brand{ID: "brand-1", UserID: 1, Name: "Croquettes & Co", WoofsLimit: limit}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("seed brand: %v", err)
	}
	return b
}

func TestConsume_SpendsAndReports(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 150)
	l := NewLedger(db, nil, 150, nil)

	res, err := l.Consume(context.Background(), 1, false, "brand-1", 2, "render-carousel", map[string]any{"job_id": "j1"})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Used != 2 || res.Remaining != 148 || res.Limit != 150 {
		t.Fatalf("result = %+v", res)
	}

	var events []UsageEvent
	if err := db.Find(&events).Error; err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 1 || events[0].Cost != 2 || events[0].Reason != "render-carousel" {
		t.Fatalf("usage events = %+v", events)
	}
}

func TestConsume_RefusesOverspend(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 150)
	l := NewLedger(db, nil, 150, nil)
	ctx := context.Background()

	// burn down to 148 used
	if _, err := l.Consume(ctx, 1, false, "brand-1", 148, "seed", nil); err != nil {
		t.Fatalf("seed consume: %v", err)
	}

	_, err := l.Consume(ctx, 1, false, "brand-1", 5, "render-carousel", nil)
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientError", err)
	}
	if insufficient.Remaining != 2 || insufficient.Required != 5 {
		t.Fatalf("insufficient = %+v", insufficient)
	}

	// the refused spend must not have touched the counter
	res, err := l.Consume(ctx, 1, false, "brand-1", 2, "render-image", nil)
	if err != nil {
		t.Fatalf("exact-fit consume: %v", err)
	}
	if res.Remaining != 0 || res.Used != 150 {
		t.Fatalf("result = %+v, want the last two woofs spent", res)
	}

	// and now the account is empty
	if _, err := l.Consume(ctx, 1, false, "brand-1", 1, "render-image", nil); err == nil {
		t.Fatalf("expected refusal on an empty account")
	}
}

func TestConsume_UnlimitedBypassesGuardButCounts(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 10)
	l := NewLedger(db, nil, 150, nil)

	res, err := l.Consume(context.Background(), 1, true, "brand-1", 25, "render-image", nil)
	if err != nil {
		t.Fatalf("unlimited consume: %v", err)
	}
	if res.Used != 25 {
		t.Fatalf("used = %d, want 25 (still metered)", res.Used)
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want clamped to 0", res.Remaining)
	}
}

func TestConsume_OwnershipCheckedFirst(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 150)
	l := NewLedger(db, nil, 150, nil)

	_, err := l.Consume(context.Background(), 99, false, "brand-1", 1, "render-image", nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestConsume_ThresholdCrossingReportedOnce(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 10)
	l := NewLedger(db, nil, 150, nil)
	ctx := context.Background()

	res, err := l.Consume(ctx, 1, false, "brand-1", 7, "render-image", nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Threshold80 {
		t.Fatalf("7/10 is below the line")
	}

	res, err = l.Consume(ctx, 1, false, "brand-1", 1, "render-image", nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !res.Threshold80 {
		t.Fatalf("8/10 crosses the line and should report it")
	}

	res, err = l.Consume(ctx, 1, false, "brand-1", 1, "render-image", nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Threshold80 {
		t.Fatalf("9/10 already crossed, must not re-report")
	}
}

func TestConsume_PeriodsAreIndependent(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 10)
	l := NewLedger(db, nil, 150, nil)
	ctx := context.Background()

	if _, err := l.Consume(ctx, 1, false, "brand-1", 10, "render-image", nil); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := l.Consume(ctx, 1, false, "brand-1", 1, "render-image", nil); err == nil {
		t.Fatalf("period exhausted, expected refusal")
	}

	// next month: fresh counter
	l.now = func() time.Time { return time.Now().AddDate(0, 1, 0) }
	res, err := l.Consume(ctx, 1, false, "brand-1", 1, "render-image", nil)
	if err != nil {
		t.Fatalf("next period consume: %v", err)
	}
	if res.Used != 1 {
		t.Fatalf("used = %d, want a fresh counter", res.Used)
	}
}

func TestGetSummary_NoSpendYet(t *testing.T) {
	db := openTestDB(t)
	seedBrand(t, db, 0) // zero means the default applies
	l := NewLedger(db, nil, 150, nil)

	s, err := l.GetSummary(context.Background(), 1, "brand-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Used != 0 || s.Remaining != 150 || s.Limit != 150 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Period != PeriodKey(time.Now()) {
		t.Fatalf("period = %s", s.Period)
	}
}
