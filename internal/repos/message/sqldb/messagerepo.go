// Package sqldb provides a message repository that stores its data inside a SQL database
package sqldb

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

const (
	messageFields = `id, event_id, content, is_public, is_deleted, created_at, deleted_at`
)

// MessageRepo is a repository that stores messages inside a SQL database
type MessageRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new message repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *MessageRepo {
	return &MessageRepo{
		db:     db,
		logger: logger,
	}
}

// Create appends a new message
func (r *MessageRepo) Create(ctx context.Context, msg *models.Message) error {
	// Content stays out of the log
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:   msg.EventID,
		log.FldMessage: msg.ID,
	}).Debug("Adding new message")
	query := r.db.Rebind(fmt.Sprintf("INSERT INTO messages(%s) VALUES(?, ?, ?, ?, ?, ?, ?)", messageFields))
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.EventID, msg.Content, msg.IsPublic, msg.IsDeleted,
		msg.CreatedAt, msg.DeletedAt)
	return errors.Wrap(err, "Create: Failed to insert message")
}

// List returns the non-deleted messages of an event - newest first
func (r *MessageRepo) List(ctx context.Context, eventID string, publicOnly bool) ([]models.Message, error) {
	where := "event_id = ? AND is_deleted = FALSE"
	if publicOnly {
		where += " AND is_public = TRUE"
	}
	query := r.db.Rebind(fmt.Sprintf(
		"SELECT %s FROM messages WHERE %s ORDER BY created_at DESC, id DESC",
		messageFields,
		where,
	))
	ret := []models.Message{}
	if err := r.db.SelectContext(ctx, &ret, query, eventID); err != nil {
		return nil, errors.Wrap(err, "List: Failed to query messages")
	}
	return ret, nil
}

// SoftDelete flags a non-deleted message of the given event as deleted
func (r *MessageRepo) SoftDelete(ctx context.Context, eventID, messageID string, now time.Time) error {
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:   eventID,
		log.FldMessage: messageID,
	}).Debug("Deleting message")
	query := r.db.Rebind(`UPDATE messages SET is_deleted = TRUE, deleted_at = ?
        WHERE id = ? AND event_id = ? AND is_deleted = FALSE`)
	res, err := r.db.ExecContext(ctx, query, now, messageID, eventID)
	if err != nil {
		return errors.Wrap(err, "SoftDelete: Failed to update message")
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil && num == 0 {
		return repos.ErrEntityNotExisting
	}
	return err
}

// compile-time check
var _ repos.MessageRepo = (*MessageRepo)(nil)
