package internal

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/expiry"
	"github.com/derWhity/whispqr/internal/feed"
	"github.com/derWhity/whispqr/internal/models"
	eventmem "github.com/derWhity/whispqr/internal/repos/event/inmem"
	msgmem "github.com/derWhity/whispqr/internal/repos/message/inmem"
)

var (
	alice = hostIdentity("host-alice", "Alice")
	bob   = hostIdentity("host-bob", "Bob")
	t0    = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
)

func hostIdentity(id, name string) models.Identity {
	return models.Identity{HostID: id, Name: name}
}

func nullLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

// recordingFeed is a live feed remembering all notifications it passed on to the real hub
type recordingFeed struct {
	*feed.Hub
	mtx      sync.Mutex
	notified []string
}

func (f *recordingFeed) Notify(ctx context.Context, eventID string) {
	f.mtx.Lock()
	f.notified = append(f.notified, eventID)
	f.mtx.Unlock()
	f.Hub.Notify(ctx, eventID)
}

func (f *recordingFeed) notifications() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]string(nil), f.notified...)
}

// testClock is a settable clock
type testClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	c.mtx.Unlock()
}

// idSequence hands out the given IDs in order and generated ones after that
type idSequence struct {
	mtx  sync.Mutex
	ids  []string
	next int
}

func (s *idSequence) NewID() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if len(s.ids) > 0 {
		id := s.ids[0]
		s.ids = s.ids[1:]
		return id
	}
	s.next++
	return fmt.Sprintf("generated-%d", s.next)
}

type testEnv struct {
	events   *eventService
	messages *messageService
	eventDB  *eventmem.EventRepo
	msgDB    *msgmem.MessageRepo
	feed     *recordingFeed
	clock    *testClock
	ids      *idSequence
}

func newTestEnv(t *testing.T, ids ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		eventDB: eventmem.New(),
		msgDB:   msgmem.New(),
		feed:    &recordingFeed{Hub: feed.NewHub(nil, nullLogger())},
		clock:   &testClock{now: t0},
		ids:     &idSequence{ids: ids},
	}
	t.Cleanup(env.feed.Close)
	env.events = NewEventService(env.eventDB, expiry.DefaultPolicy, env.feed, nullLogger()).(*eventService)
	env.events.now = env.clock.Now
	env.events.newID = env.ids.NewID
	env.messages = NewMessageService(env.events, env.msgDB, env.feed, nullLogger()).(*messageService)
	env.messages.now = env.clock.Now
	env.messages.newID = env.ids.NewID
	return env
}

// errorCode returns the machine-readable code of err, if it carries one
func errorCode(err error) string {
	if cd, ok := err.(errorCoder); ok {
		return cd.ErrorCode()
	}
	return ""
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	if got := errorCode(err); got != code {
		t.Fatalf("expected error %s, got %s (%v)", code, got, err)
	}
}
