// Package repos contains the repository interfaces needed in whispqr
// It exists to prevent circular dependencies between whispqr and the repo implementations
package repos

import (
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is read, updated or deleted does not exist
	// (or has already been soft-deleted)
	ErrEntityNotExisting = fmt.Errorf("cannot update: Entity does not exist")
)

// EventRepo defines a repository that handles storing and querying events
type EventRepo interface {
	// Create stores a new event. ID and string code have to be set by the caller
	Create(ctx context.Context, ev *models.Event) error
	// GetByID returns the event with the given ID - deleted events included
	GetByID(ctx context.Context, id string) (*models.Event, error)
	// FindByCode returns all active, non-deleted events holding the given string code - newest first
	FindByCode(ctx context.Context, code string) ([]models.Event, error)
	// FindByHost returns all non-deleted events of the given host - newest first
	FindByHost(ctx context.Context, hostID string) ([]models.Event, error)
	// SetActive sets the host toggle of a non-deleted event
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
	// SoftDelete flags a non-deleted event as deleted
	SoftDelete(ctx context.Context, id string, now time.Time) error
}

// MessageRepo defines a repository that stores the messages of events
type MessageRepo interface {
	// Create appends a new message. The ID has to be set by the caller
	Create(ctx context.Context, msg *models.Message) error
	// List returns the non-deleted messages of an event - newest first
	List(ctx context.Context, eventID string, publicOnly bool) ([]models.Message, error)
	// SoftDelete flags a non-deleted message of the given event as deleted
	SoftDelete(ctx context.Context, eventID, messageID string, now time.Time) error
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}

// SortEventsNewestFirst orders events by creation time descending, using the ID as tie-breaker
func SortEventsNewestFirst(evts []models.Event) {
	sort.SliceStable(evts, func(i, j int) bool {
		if !evts[i].CreatedAt.Equal(evts[j].CreatedAt) {
			return evts[i].CreatedAt.After(evts[j].CreatedAt)
		}
		return evts[i].ID > evts[j].ID
	})
}

// SortMessagesNewestFirst orders messages by creation time descending, using the ID as tie-breaker
func SortMessagesNewestFirst(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
}
