package internal

import (
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/models"
)

func addMessage(t *testing.T, env *testEnv, eventID, content string, public bool) *models.Message {
	t.Helper()
	msg, err := env.messages.Add(context.Background(), eventID, models.MessageDraft{Content: content, IsPublic: public})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return msg
}

func TestMessageService_PublicForcedPrivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, err := env.events.Create(ctx, alice, models.EventDraft{Name: "Quiet Room", AllowPublicMessages: false})
	if err != nil {
		t.Fatal(err)
	}
	msg := addMessage(t, env, ev.ID, "can everyone read this?", true)
	if msg.IsPublic {
		t.Fatal("message on an event without public messages must be private")
	}
	stored, err := env.msgDB.List(ctx, ev.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].IsPublic {
		t.Fatalf("unexpected stored messages: %+v", stored)
	}
}

func TestMessageService_Visibility(t *testing.T) {
	env := newTestEnv(t, "E1", "m-public", "m-private", "m-late")
	ctx := context.Background()
	createEvent(t, env, alice, "Open House")
	addMessage(t, env, "E1", "hello everyone", true)
	env.clock.Advance(time.Second)
	addMessage(t, env, "E1", "psst, host only", false)
	env.clock.Advance(time.Second)
	addMessage(t, env, "E1", "late public", true)

	tests := []struct {
		name   string
		viewer *models.Identity
		want   []string
	}{
		{"guest", nil, []string{"m-late", "m-public"}},
		{"other host", &bob, []string{"m-late", "m-public"}},
		{"owner", &alice, []string{"m-late", "m-private", "m-public"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := env.messages.List(ctx, "E1", tt.viewer)
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != len(tt.want) {
				t.Fatalf("expected %d messages, got %+v", len(tt.want), msgs)
			}
			for i, id := range tt.want {
				if msgs[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, msgs[i].ID)
				}
				if tt.viewer == nil && !msgs[i].IsPublic {
					t.Fatal("guest received a private message")
				}
			}
		})
	}
}

func TestMessageService_EmptyList(t *testing.T) {
	env := newTestEnv(t)
	ev := createEvent(t, env, alice, "Silent")
	msgs, err := env.messages.List(context.Background(), ev.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected an empty, non-nil list, got %#v", msgs)
	}
}

func TestMessageService_AddNeedsLiveEvent(t *testing.T) {
	env := newTestEnv(t, "deleted", "expired")
	ctx := context.Background()
	draft := models.MessageDraft{Content: "anyone there?"}

	_, err := env.messages.Add(ctx, "unknown", draft)
	expectCode(t, err, ErrCodeEventNotFound)

	deleted := createEvent(t, env, alice, "Deleted")
	if err := env.events.Delete(ctx, alice, deleted.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.messages.Add(ctx, deleted.ID, draft)
	expectCode(t, err, ErrCodeEventNotFound)

	expired := createEvent(t, env, alice, "Expired")
	env.clock.Advance(49 * time.Hour)
	_, err = env.messages.Add(ctx, expired.ID, draft)
	expectCode(t, err, ErrCodeEventNotFound)
	_, err = env.messages.List(ctx, expired.ID, &alice)
	expectCode(t, err, ErrCodeEventNotFound)
}

func TestMessageService_AddValidation(t *testing.T) {
	env := newTestEnv(t)
	ev := createEvent(t, env, alice, "Strict")
	for _, content := range []string{"", "  \n\t ", longText(1001)} {
		_, err := env.messages.Add(context.Background(), ev.ID, models.MessageDraft{Content: content})
		expectCode(t, err, ErrCodeValidationFailed)
	}
	msg := addMessage(t, env, ev.ID, "  padded  ", false)
	if msg.Content != "padded" {
		t.Fatalf("content has not been trimmed: %q", msg.Content)
	}
}

func TestMessageService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := createEvent(t, env, alice, "Moderated")
	msg := addMessage(t, env, ev.ID, "rude words", true)

	expectCode(t, env.messages.Delete(ctx, bob, ev.ID, msg.ID), ErrCodeForbidden)
	if err := env.messages.Delete(ctx, alice, ev.ID, msg.ID); err != nil {
		t.Fatal(err)
	}
	expectCode(t, env.messages.Delete(ctx, alice, ev.ID, msg.ID), ErrCodeMessageNotFound)
	expectCode(t, env.messages.Delete(ctx, alice, ev.ID, "unknown"), ErrCodeMessageNotFound)

	msgs, err := env.messages.List(ctx, ev.ID, &alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("deleted message is still listed: %+v", msgs)
	}
	// Add and Delete notify
	if n := env.feed.notifications(); len(n) != 2 {
		t.Fatalf("expected two notifications, got %v", n)
	}
}

func TestMessageService_DeleteOnlyWithinEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := createEvent(t, env, alice, "First")
	second := createEvent(t, env, alice, "Second")
	msg := addMessage(t, env, first.ID, "belongs to the first event", true)
	expectCode(t, env.messages.Delete(ctx, alice, second.ID, msg.ID), ErrCodeMessageNotFound)
}

func TestMessageService_DeleteOnExpiredEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := createEvent(t, env, alice, "Yesterday")
	msg := addMessage(t, env, ev.ID, "left behind", true)
	env.clock.Advance(49 * time.Hour)

	expectCode(t, env.messages.Delete(ctx, bob, ev.ID, msg.ID), ErrCodeForbidden)
	// The host may still moderate, just like deactivating or deleting the expired event itself
	if err := env.messages.Delete(ctx, alice, ev.ID, msg.ID); err != nil {
		t.Fatalf("host could not delete a message of an expired event: %v", err)
	}
	stored, err := env.msgDB.List(ctx, ev.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Fatalf("message has not been deleted: %+v", stored)
	}

	if err := env.events.Delete(ctx, alice, ev.ID); err != nil {
		t.Fatal(err)
	}
	expectCode(t, env.messages.Delete(ctx, alice, ev.ID, msg.ID), ErrCodeEventNotFound)
}

// receive waits for the next delivery of a subscription
func receive(t *testing.T, updates <-chan feedUpdate) feedUpdate {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no feed update received")
	}
	return feedUpdate{}
}

func TestMessageService_Subscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := createEvent(t, env, alice, "Live")
	addMessage(t, env, ev.ID, "before subscribing", true)

	updates := make(chan feedUpdate, 10)
	sub, err := env.messages.Subscribe(ctx, ev.ID, nil, func(msgs []models.Message, err error) {
		updates <- feedUpdate{msgs, err}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	u := receive(t, updates)
	if u.err != nil || len(u.msgs) != 1 {
		t.Fatalf("unexpected initial snapshot: %+v", u)
	}

	env.clock.Advance(time.Second)
	addMessage(t, env, ev.ID, "private note", false)
	addMessage(t, env, ev.ID, "second public", true)
	// Updates may be coalesced - wait for the snapshot containing both public messages
	for {
		u = receive(t, updates)
		if u.err != nil {
			t.Fatal(u.err)
		}
		for _, m := range u.msgs {
			if !m.IsPublic {
				t.Fatal("guest feed delivered a private message")
			}
		}
		if len(u.msgs) == 2 {
			break
		}
	}
	if u.msgs[0].Content != "second public" {
		t.Fatalf("feed is not sorted newest first: %+v", u.msgs)
	}

	if err := env.events.Delete(ctx, alice, ev.ID); err != nil {
		t.Fatal(err)
	}
	for {
		u = receive(t, updates)
		if u.err != nil {
			break
		}
	}
	expectCode(t, u.err, ErrCodeEventNotFound)
}

func TestMessageService_SubscribeUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.messages.Subscribe(context.Background(), "unknown", nil, func([]models.Message, error) {})
	expectCode(t, err, ErrCodeEventNotFound)
}

func TestMessageService_SubscribeAfterHubClosed(t *testing.T) {
	env := newTestEnv(t)
	ev := createEvent(t, env, alice, "Closing time")
	env.feed.Close()
	_, err := env.messages.Subscribe(context.Background(), ev.ID, nil, func([]models.Message, error) {})
	expectCode(t, err, ErrCodeFeedUnavailable)
}
