// Package inmem provides an event repository that works from memory.
// It is used for tests and for running whispqr without any database.
package inmem

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

// EventRepo provides a simple in-memory event storage
type EventRepo struct {
	mtx    sync.RWMutex
	events map[string]models.Event
}

// New creates a new event repository instance
func New() *EventRepo {
	return &EventRepo{
		events: make(map[string]models.Event),
	}
}

// Create stores a new event
func (r *EventRepo) Create(_ context.Context, ev *models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("Create: Event has no ID")
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.events[ev.ID]; ok {
		return fmt.Errorf("Create: An event with ID '%s' does already exist", ev.ID)
	}
	r.events[ev.ID] = *ev
	return nil
}

// GetByID returns the event with the given ID
func (r *EventRepo) GetByID(_ context.Context, id string) (*models.Event, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if ev, ok := r.events[id]; ok {
		// Copy the event
		ret := ev
		return &ret, nil
	}
	return nil, repos.ErrEntityNotExisting
}

// FindByCode returns all active, non-deleted events holding the given string code
func (r *EventRepo) FindByCode(_ context.Context, code string) ([]models.Event, error) {
	return r.filter(func(ev *models.Event) bool {
		return ev.StringCode == code && ev.IsActive
	}), nil
}

// FindByHost returns all non-deleted events of the given host
func (r *EventRepo) FindByHost(_ context.Context, hostID string) ([]models.Event, error) {
	return r.filter(func(ev *models.Event) bool {
		return ev.HostID == hostID
	}), nil
}

// filter returns copies of all non-deleted events matching the given function - newest first
func (r *EventRepo) filter(match func(ev *models.Event) bool) []models.Event {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	ret := []models.Event{}
	for _, ev := range r.events {
		if !ev.IsDeleted && match(&ev) {
			ret = append(ret, ev)
		}
	}
	repos.SortEventsNewestFirst(ret)
	return ret
}

// SetActive sets the host toggle of a non-deleted event
func (r *EventRepo) SetActive(_ context.Context, id string, active bool, now time.Time) error {
	return r.update(id, func(ev *models.Event) {
		ev.IsActive = active
		ev.UpdatedAt = now
	})
}

// SoftDelete flags a non-deleted event as deleted
func (r *EventRepo) SoftDelete(_ context.Context, id string, now time.Time) error {
	return r.update(id, func(ev *models.Event) {
		ev.IsDeleted = true
		ev.UpdatedAt = now
		deletedAt := now
		ev.DeletedAt = &deletedAt
	})
}

func (r *EventRepo) update(id string, change func(ev *models.Event)) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	ev, ok := r.events[id]
	if !ok || ev.IsDeleted {
		return repos.ErrEntityNotExisting
	}
	change(&ev)
	r.events[id] = ev
	return nil
}
