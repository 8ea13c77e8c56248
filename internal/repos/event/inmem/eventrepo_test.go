package inmem

import (
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

func TestEventRepo(t *testing.T) {
	r := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		ev := &models.Event{
			ID:         id,
			HostID:     "h1",
			StringCode: "SAME00",
			IsActive:   id != "c",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := r.Create(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Create(ctx, &models.Event{ID: "a"}); err == nil {
		t.Fatal("expected duplicate ID to be rejected")
	}

	got, _ := r.FindByCode(ctx, "SAME00")
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected lookup result %+v", got)
	}

	// modifying a returned copy must not touch the stored event
	ev, _ := r.GetByID(ctx, "a")
	ev.Name = "changed"
	if stored, _ := r.GetByID(ctx, "a"); stored.Name == "changed" {
		t.Fatal("repository returned a shared instance")
	}

	if err := r.SoftDelete(ctx, "b", base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := r.SoftDelete(ctx, "b", base.Add(time.Hour)); err != repos.ErrEntityNotExisting {
		t.Fatalf("expected ErrEntityNotExisting, got %v", err)
	}
	if err := r.SetActive(ctx, "b", true, base.Add(time.Hour)); err != repos.ErrEntityNotExisting {
		t.Fatalf("expected ErrEntityNotExisting, got %v", err)
	}
	hostEvents, _ := r.FindByHost(ctx, "h1")
	if len(hostEvents) != 2 || hostEvents[0].ID != "c" || hostEvents[1].ID != "a" {
		t.Fatalf("unexpected host events %+v", hostEvents)
	}
	if _, err := r.GetByID(ctx, "missing"); err != repos.ErrEntityNotExisting {
		t.Fatalf("expected ErrEntityNotExisting, got %v", err)
	}
}
