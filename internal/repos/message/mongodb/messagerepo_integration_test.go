package mongodb

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

func TestMessageRepo_Integration(t *testing.T) {
	uri := os.Getenv("WHISPQR_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WHISPQR_TEST_MONGO_URI not set (integration test)")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatal(err)
	}
	db := client.Database("whispqr_test_" + uuid.NewString()[:8])
	defer func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	}()
	logger, _ := test.NewNullLogger()
	r := New(db, logrus.NewEntry(logger))
	if err := r.EnsureIndexes(ctx); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{ID: "m1", EventID: "e1", Content: "public", IsPublic: true, CreatedAt: base},
		{ID: "m2", EventID: "e1", Content: "private", CreatedAt: base.Add(time.Minute)},
	}
	for i := range msgs {
		if err := r.Create(ctx, &msgs[i]); err != nil {
			t.Fatal(err)
		}
	}
	all, err := r.List(ctx, "e1", false)
	if err != nil || len(all) != 2 || all[0].ID != "m2" {
		t.Fatalf("unexpected host list %+v, %v", all, err)
	}
	public, err := r.List(ctx, "e1", true)
	if err != nil || len(public) != 1 || public[0].ID != "m1" {
		t.Fatalf("unexpected guest list %+v, %v", public, err)
	}
	if err := r.SoftDelete(ctx, "e1", "m1", base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := r.SoftDelete(ctx, "e1", "m1", base.Add(time.Hour)); err != repos.ErrEntityNotExisting {
		t.Fatalf("expected ErrEntityNotExisting, got %v", err)
	}
}
