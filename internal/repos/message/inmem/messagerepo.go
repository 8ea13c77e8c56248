// Package inmem provides a message repository that works from memory
package inmem

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

// MessageRepo provides a simple in-memory message storage grouped by event
type MessageRepo struct {
	mtx      sync.RWMutex
	messages map[string]map[string]models.Message
}

// New creates a new message repository instance
func New() *MessageRepo {
	return &MessageRepo{
		messages: make(map[string]map[string]models.Message),
	}
}

// Create appends a new message
func (r *MessageRepo) Create(_ context.Context, msg *models.Message) error {
	if msg.ID == "" || msg.EventID == "" {
		return fmt.Errorf("Create: Message needs an ID and an event ID")
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	evMsgs, ok := r.messages[msg.EventID]
	if !ok {
		evMsgs = make(map[string]models.Message)
		r.messages[msg.EventID] = evMsgs
	}
	if _, ok := evMsgs[msg.ID]; ok {
		return fmt.Errorf("Create: A message with ID '%s' does already exist", msg.ID)
	}
	evMsgs[msg.ID] = *msg
	return nil
}

// List returns the non-deleted messages of an event - newest first
func (r *MessageRepo) List(_ context.Context, eventID string, publicOnly bool) ([]models.Message, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	ret := []models.Message{}
	for _, msg := range r.messages[eventID] {
		if msg.IsDeleted || (publicOnly && !msg.IsPublic) {
			continue
		}
		ret = append(ret, msg)
	}
	repos.SortMessagesNewestFirst(ret)
	return ret, nil
}

// SoftDelete flags a non-deleted message of the given event as deleted
func (r *MessageRepo) SoftDelete(_ context.Context, eventID, messageID string, now time.Time) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	msg, ok := r.messages[eventID][messageID]
	if !ok || msg.IsDeleted {
		return repos.ErrEntityNotExisting
	}
	msg.IsDeleted = true
	deletedAt := now
	msg.DeletedAt = &deletedAt
	r.messages[eventID][messageID] = msg
	return nil
}
