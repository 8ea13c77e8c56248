package sqldb

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/migrate"
	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

func newTestRepo(t *testing.T) *MessageRepo {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	if err := migrate.ExecuteMigrationsOnDb(db, entry); err != nil {
		t.Fatal(err)
	}
	return New(db, entry)
}

func TestMessageRepo_ListAndVisibility(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{ID: "m1", EventID: "e1", Content: "first", IsPublic: true, CreatedAt: base},
		{ID: "m2", EventID: "e1", Content: "secret", IsPublic: false, CreatedAt: base.Add(time.Minute)},
		{ID: "m3", EventID: "e1", Content: "third", IsPublic: true, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "m4", EventID: "e2", Content: "elsewhere", IsPublic: true, CreatedAt: base},
	}
	for i := range msgs {
		if err := r.Create(ctx, &msgs[i]); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.List(ctx, "e1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "m3" || all[1].ID != "m2" || all[2].ID != "m1" {
		t.Fatalf("unexpected host list %+v", all)
	}
	public, err := r.List(ctx, "e1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(public) != 2 || public[0].ID != "m3" || public[1].ID != "m1" {
		t.Fatalf("unexpected guest list %+v", public)
	}

	empty, err := r.List(ctx, "nothing-here", false)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected an empty, non-nil list; got %v, %v", empty, err)
	}
}

func TestMessageRepo_SoftDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := models.Message{ID: "m1", EventID: "e1", Content: "bye", IsPublic: true, CreatedAt: base}
	if err := r.Create(ctx, &msg); err != nil {
		t.Fatal(err)
	}
	if err := r.SoftDelete(ctx, "other-event", "m1", base); err != repos.ErrEntityNotExisting {
		t.Fatalf("expected ErrEntityNotExisting for wrong event, got %v", err)
	}
	if err := r.SoftDelete(ctx, "e1", "m1", base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := r.SoftDelete(ctx, "e1", "m1", base.Add(2*time.Minute)); err != repos.ErrEntityNotExisting {
		t.Fatalf("expected ErrEntityNotExisting on second delete, got %v", err)
	}
	list, err := r.List(ctx, "e1", false)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected deleted message to be hidden; got %v, %v", list, err)
	}
}
