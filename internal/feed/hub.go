// Package feed provides live message feeds.
// A Hub keeps track of all subscriptions inside a control goroutine. Whenever the messages of an event change, every
// subscription of that event re-runs its query and hands the full, current list to its callback.
package feed

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
)

const maxListenBackoff = 30 * time.Second

// ErrHubClosed is returned when subscribing to a hub that has already been shut down
var ErrHubClosed = errors.New("feed hub has been closed")

// UpdateFunc receives the current message list of a subscription or the error loading it failed with
type UpdateFunc func(msgs []models.Message, err error)

// QueryFunc loads the current message list of a subscription
type QueryFunc func(ctx context.Context) ([]models.Message, error)

// Broadcaster distributes change notifications between multiple instances of the application
type Broadcaster interface {
	// Publish announces that the messages of the given event have changed
	Publish(ctx context.Context, eventID string) error
	// Listen blocks and calls deliver for every announced change until ctx ends or the connection breaks.
	// connected is called once the broker subscription is in place.
	Listen(ctx context.Context, connected func(), deliver func(eventID string)) error
	// Close releases the broker connection
	Close() error
}

// hubRequest is sent over one of the hub's channels to execute functions inside the control goroutine
type hubRequest struct {
	sub     *Subscription
	eventID string
	answer  chan<- uint64
}

// Hub manages the live feed subscriptions of all events
type Hub struct {
	add    chan<- hubRequest
	remove chan<- hubRequest
	notify chan<- hubRequest
	resync chan<- struct{}
	quit   chan struct{}
	once   sync.Once

	broadcaster Broadcaster
	logger      *logrus.Entry
}

// NewHub creates a new hub and starts its control goroutine.
// If a broadcaster is given, notifications go through the broker and Run has to be called to receive them.
func NewHub(broadcaster Broadcaster, logger *logrus.Entry) *Hub {
	a := make(chan hubRequest)
	r := make(chan hubRequest)
	n := make(chan hubRequest)
	rs := make(chan struct{})
	h := &Hub{
		add:         a,
		remove:      r,
		notify:      n,
		resync:      rs,
		quit:        make(chan struct{}),
		broadcaster: broadcaster,
		logger:      logger,
	}
	go h.control(a, r, n, rs)
	return h
}

// control is the goroutine owning the subscription index
func (h *Hub) control(add, remove, notify <-chan hubRequest, resync <-chan struct{}) {
	subs := map[string]map[uint64]*Subscription{}
	var lastID uint64
	for {
		select {
		case req := <-add:
			lastID++
			req.sub.id = lastID
			evSubs, ok := subs[req.sub.eventID]
			if !ok {
				evSubs = map[uint64]*Subscription{}
				subs[req.sub.eventID] = evSubs
			}
			evSubs[lastID] = req.sub
			req.answer <- lastID
		case req := <-remove:
			if evSubs, ok := subs[req.sub.eventID]; ok {
				delete(evSubs, req.sub.id)
				if len(evSubs) == 0 {
					delete(subs, req.sub.eventID)
				}
			}
		case req := <-notify:
			for _, sub := range subs[req.eventID] {
				sub.signal()
			}
		case <-resync:
			for _, evSubs := range subs {
				for _, sub := range evSubs {
					sub.signal()
				}
			}
		case <-h.quit:
			for _, evSubs := range subs {
				for _, sub := range evSubs {
					sub.stop()
				}
			}
			return
		}
	}
}

// Subscribe registers a new subscription for the given event. The callback is invoked with the initial list right
// away and again after every change. The subscription ends when Cancel is called or ctx ends.
func (h *Hub) Subscribe(ctx context.Context, eventID string, query QueryFunc, onUpdate UpdateFunc) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		hub:      h,
		eventID:  eventID,
		query:    query,
		onUpdate: onUpdate,
		ctx:      subCtx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	answer := make(chan uint64)
	select {
	case h.add <- hubRequest{sub: sub, answer: answer}:
	case <-h.quit:
		cancel()
		return nil, ErrHubClosed
	}
	<-answer
	h.logger.WithFields(logrus.Fields{
		log.FldEvent:        eventID,
		log.FldSubscription: sub.id,
	}).Debug("Feed subscription started")
	// Initial snapshot
	sub.signal()
	go sub.run()
	return sub, nil
}

// Notify announces a change of the messages of the given event to all subscribers - on every instance if a
// broadcaster is in use. Local subscribers are always woken directly; the broker's echo only adds a coalesced reload.
func (h *Hub) Notify(ctx context.Context, eventID string) {
	if h.broadcaster != nil {
		if err := h.broadcaster.Publish(ctx, eventID); err != nil {
			h.logger.WithError(err).WithField(log.FldEvent, eventID).Warn(
				"Failed to publish feed notification - delivering locally only",
			)
		}
	}
	h.deliver(eventID)
}

// deliver wakes up all local subscriptions of the given event
func (h *Hub) deliver(eventID string) {
	select {
	case h.notify <- hubRequest{eventID: eventID}:
	case <-h.quit:
	}
}

// resyncAll wakes up every local subscription. Changes announced while the broker listener was down are lost, so
// all feeds reload once it is connected again.
func (h *Hub) resyncAll() {
	select {
	case h.resync <- struct{}{}:
	case <-h.quit:
	}
}

func (h *Hub) unregister(sub *Subscription) {
	select {
	case h.remove <- hubRequest{sub: sub}:
	case <-h.quit:
	}
}

// Run receives notifications from the broadcaster until ctx ends. Broken connections are re-established with an
// increasing delay. Without a broadcaster, Run returns immediately.
func (h *Hub) Run(ctx context.Context) {
	if h.broadcaster == nil {
		return
	}
	backoff := time.Second
	for {
		started := time.Now()
		err := h.broadcaster.Listen(ctx, h.resyncAll, h.deliver)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > maxListenBackoff {
			backoff = time.Second
		}
		h.logger.WithError(err).Warnf("Feed broker connection lost - reconnecting in %s", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxListenBackoff {
			backoff *= 2
		}
	}
}

// Close ends all subscriptions and stops the control goroutine
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.quit)
	})
}

// -- Subscription -----------------------------------------------------------------------------------------------------

// Subscription is a single live feed
type Subscription struct {
	id       uint64
	hub      *Hub
	eventID  string
	query    QueryFunc
	onUpdate UpdateFunc
	ctx      context.Context
	cancel   context.CancelFunc

	// wake has a buffer of one; pending changes collapse into a single reload
	wake chan struct{}
	// done is closed when the subscription ends
	done     chan struct{}
	doneOnce sync.Once
	// finished is closed when the delivery goroutine has exited
	finished chan struct{}

	// mtx is held while the callback runs
	mtx       sync.Mutex
	cancelled bool
}

// Done returns a channel that is closed once the subscription has ended
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel ends the subscription. It may be called multiple times. Once it has returned, the callback is not invoked
// anymore. Cancel must not be called from inside the callback; cancel the context passed to Subscribe instead.
func (s *Subscription) Cancel() {
	s.stop()
	s.hub.unregister(s)
	s.mtx.Lock()
	s.cancelled = true
	s.mtx.Unlock()
}

// stop closes the done channel without talking to the hub
func (s *Subscription) stop() {
	s.doneOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
		// A reload is already pending
	}
}

// run is the delivery goroutine of the subscription
func (s *Subscription) run() {
	defer close(s.finished)
	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			s.Cancel()
			return
		case <-s.wake:
		}
		msgs, err := s.query(s.ctx)
		s.mtx.Lock()
		if !s.cancelled && s.ctx.Err() == nil {
			s.onUpdate(msgs, err)
		}
		s.mtx.Unlock()
	}
}
