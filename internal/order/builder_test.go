package order

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/conversation"
)

type recordingDispatcher struct {
	published []string
	fail      bool
}

func (d *recordingDispatcher) PublishJob(ctx context.Context, jobID string) error {
	_ = ctx
	if d.fail {
		return fmt.Errorf("broker down")
	}
	d.published = append(d.published, jobID)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Order{}, &OrderItem{}, &Job{}, &conversation.Session{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	s := &conversation.Session{ID: id, UserID: 1, BrandID: "brand-1", State: conversation.StateConfirming}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func confirmedContext() conversation.Context {
	return conversation.Context{
		NumImages:    2,
		NumCarousels: 1,
		Images: []conversation.ImageBrief{
			{Objective: "promo de rentrée", Format: "carré"},
			{Objective: "présenter le produit"},
		},
		Carousels: []conversation.CarouselBrief{
			{Subject: "comment choisir ses croquettes", SlideCount: 5},
		},
	}
}

func TestBuild_MaterializesItemsAndJobs(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "01SESS0000000000000000000A")

	disp := &recordingDispatcher{}
	b := NewBuilder(NewRepo(db), conversation.NewRepo(db), disp, nil)

	res, err := b.Build(context.Background(), BuildInput{
		UserID:    1,
		BrandID:   "brand-1",
		SessionID: "01SESS0000000000000000000A",
		Campaign:  "rentrée",
		Context:   confirmedContext(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected a fresh order")
	}
	if res.Order.Status != StatusProcessing {
		t.Fatalf("order status = %s, want %s", res.Order.Status, StatusProcessing)
	}
	if len(res.Jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(res.Jobs))
	}
	if len(disp.published) != 3 {
		t.Fatalf("published = %d, want 3", len(disp.published))
	}

	var items []OrderItem
	if err := db.Where("order_id = ?", res.Order.ID).Find(&items).Error; err != nil {
		t.Fatalf("query items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want image + carousel", len(items))
	}

	// unit indexes cover each requested unit exactly once per type
	var jobs []Job
	if err := db.Where("order_id = ?", res.Order.ID).Order("type, unit_index").Find(&jobs).Error; err != nil {
		t.Fatalf("query jobs: %v", err)
	}
	seen := map[string]bool{}
	for _, j := range jobs {
		seen[fmt.Sprintf("%s/%d", j.Type, j.UnitIndex)] = true
		if j.Status != JobQueued {
			t.Fatalf("job %s status = %s, want queued", j.ID, j.Status)
		}
	}
	for _, want := range []string{"render-image/0", "render-image/1", "render-carousel/0"} {
		if !seen[want] {
			t.Fatalf("missing job %s, have %v", want, seen)
		}
	}
}

func TestBuild_SecondCallReturnsSameOrder(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "01SESS0000000000000000000B")

	disp := &recordingDispatcher{}
	b := NewBuilder(NewRepo(db), conversation.NewRepo(db), disp, nil)
	in := BuildInput{
		UserID:    1,
		BrandID:   "brand-1",
		SessionID: "01SESS0000000000000000000B",
		Context:   confirmedContext(),
	}

	first, err := b.Build(context.Background(), in)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}

	// a retry arrives without knowing about the first order
	second, err := b.Build(context.Background(), in)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if second.Created {
		t.Fatalf("retry must not create a second order")
	}
	if second.Order.ID != first.Order.ID {
		t.Fatalf("retry returned order %s, want %s", second.Order.ID, first.Order.ID)
	}
	if len(second.Jobs) != len(first.Jobs) {
		t.Fatalf("retry jobs = %d, want %d", len(second.Jobs), len(first.Jobs))
	}

	var orderCount int64
	if err := db.Model(&Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("orders in db = %d, want 1 (loser cleaned up)", orderCount)
	}

	var jobCount int64
	if err := db.Model(&Job{}).Count(&jobCount).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if jobCount != 3 {
		t.Fatalf("jobs in db = %d, want 3", jobCount)
	}
}

func TestBuild_ExistingOrderShortCircuits(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "01SESS0000000000000000000C")

	b := NewBuilder(NewRepo(db), conversation.NewRepo(db), &recordingDispatcher{}, nil)
	in := BuildInput{
		UserID:    1,
		BrandID:   "brand-1",
		SessionID: "01SESS0000000000000000000C",
		Context:   confirmedContext(),
	}

	first, err := b.Build(context.Background(), in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	in.ExistingOrderID = &first.Order.ID
	res, err := b.Build(context.Background(), in)
	if err != nil {
		t.Fatalf("existing build: %v", err)
	}
	if res.Created || res.Order.ID != first.Order.ID {
		t.Fatalf("existing order path returned %+v", res)
	}
}

func TestBuild_FailedDispatchLeavesJobsQueued(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "01SESS0000000000000000000D")

	disp := &recordingDispatcher{fail: true}
	b := NewBuilder(NewRepo(db), conversation.NewRepo(db), disp, nil)

	res, err := b.Build(context.Background(), BuildInput{
		UserID:    1,
		BrandID:   "brand-1",
		SessionID: "01SESS0000000000000000000D",
		Context:   confirmedContext(),
	})
	if err != nil {
		t.Fatalf("build should survive a dead broker: %v", err)
	}
	if len(res.Jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(res.Jobs))
	}

	// the staleness sweep later redelivers them
	repo := NewRepo(db)
	if err := db.Model(&Job{}).Where("order_id = ?", res.Order.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("age jobs: %v", err)
	}
	disp.fail = false
	processed, failed, err := b.ForceProcessStale(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("force process: %v", err)
	}
	if processed != 3 || failed != 0 {
		t.Fatalf("processed=%d failed=%d, want 3/0", processed, failed)
	}
	stale, err := repo.ListStaleQueued(context.Background(), time.Hour*2, 0)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("no job should be older than two hours, got %d", len(stale))
	}
}
