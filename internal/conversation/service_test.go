package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateSession_SeedsWelcomeMessage(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)

	sess, err := svc.CreateSession(context.Background(), 1, "brand-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.State != StateInitial {
		t.Fatalf("state = %s, want %s", sess.State, StateInitial)
	}

	msgs, err := svc.ListMessages(context.Background(), 1, sess.ID, 10, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != "assistant" {
		t.Fatalf("expected one seeded assistant message, got %+v", msgs)
	}
}

func TestPostMessage_PersistsStateBeforeReplying(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, 1, "brand-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	turn, err := svc.PostMessage(ctx, 1, sess.ID, "3 images")
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if turn.State != StateCollectingImage {
		t.Fatalf("state = %s, want %s", turn.State, StateCollectingImage)
	}
	if !strings.Contains(turn.Reply, "image 1") {
		t.Fatalf("reply should ask about image 1, got %q", turn.Reply)
	}

	// the stored row must already carry the advanced state
	stored, err := repo.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.State != StateCollectingImage {
		t.Fatalf("stored state = %s, want %s", stored.State, StateCollectingImage)
	}
	c, err := DecodeContext(stored.Context)
	if err != nil {
		t.Fatalf("decode context: %v", err)
	}
	if c.NumImages != 3 || len(c.Images) != 3 {
		t.Fatalf("stored context = %+v, want 3 image slots", c)
	}
}

func TestPostMessage_FullImageFlowToConfirmation(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, 1, "brand-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	for _, msg := range []string{"1 image", "annoncer la promo", "carré", "photo"} {
		if _, err := svc.PostMessage(ctx, 1, sess.ID, msg); err != nil {
			t.Fatalf("post %q: %v", msg, err)
		}
	}

	stored, err := svc.GetSession(ctx, 1, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.State != StateConfirming {
		t.Fatalf("state = %s, want %s", stored.State, StateConfirming)
	}

	turn, err := svc.PostMessage(ctx, 1, sess.ID, "oui")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !turn.Confirmed {
		t.Fatalf("expected confirmation")
	}
}

func TestPostMessage_OwnershipHiddenAsNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, 1, "brand-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = svc.PostMessage(ctx, 2, sess.ID, "1 image")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want record not found", err)
	}
}

func TestLinkOrder_FirstWriterWins(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	sess := &Session{ID: "01SESS0000000000000000000A", UserID: 1, BrandID: "brand-1", State: StateConfirming}
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	linked, err := repo.LinkOrder(ctx, sess.ID, "order-a")
	if err != nil || !linked {
		t.Fatalf("first link: linked=%v err=%v", linked, err)
	}
	linked, err = repo.LinkOrder(ctx, sess.ID, "order-b")
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if linked {
		t.Fatalf("second link must lose")
	}

	got, err := repo.LinkedOrderID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("linked order id: %v", err)
	}
	if got == nil || *got != "order-a" {
		t.Fatalf("linked order = %v, want order-a", got)
	}

	stored, err := repo.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.State != StateGenerating {
		t.Fatalf("state = %s, want %s after linking", stored.State, StateGenerating)
	}
}
