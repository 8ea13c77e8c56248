// Package sqldb provides an event repository that stores its data inside a SQL database.
// Queries are written with "?" placeholders and rebound for the connected driver, so SQLite, PostgreSQL and MySQL
// can be used alike.
package sqldb

import (
	"database/sql"
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
	eventFields = `id, name, description, location, host_id, host_name, allow_public_messages, string_code, is_active,
        is_deleted, created_at, updated_at, deleted_at`
)

// EventRepo is an repository that stores its data inside a SQL database
type EventRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new event repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *EventRepo {
	return &EventRepo{
		db:     db,
		logger: logger,
	}
}

// Create stores a new event
func (r *EventRepo) Create(ctx context.Context, ev *models.Event) error {
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Adding new event")
	query := r.db.Rebind(fmt.Sprintf(
		"INSERT INTO events(%s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		eventFields,
	))
	_, err := r.db.ExecContext(ctx, query, ev.ID, ev.Name, ev.Description, ev.Location, ev.HostID, ev.HostName,
		ev.AllowPublicMessages, ev.StringCode, ev.IsActive, ev.IsDeleted, ev.CreatedAt, ev.UpdatedAt, ev.DeletedAt)
	return errors.Wrap(err, "Create: Failed to insert event")
}

// GetByID returns the event with the given ID
func (r *EventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.logger.WithField(log.FldEvent, id).Debug("Loading event")
	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM events WHERE id = ?", eventFields))
	var ev models.Event
	err := r.db.GetContext(ctx, &ev, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrap(err, "GetByID: Failed to load event")
	}
	return &ev, nil
}

// FindByCode returns all active, non-deleted events holding the given string code - newest first
func (r *EventRepo) FindByCode(ctx context.Context, code string) ([]models.Event, error) {
	r.logger.WithField(log.FldCode, code).Debug("Searching events by code")
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM events
        WHERE string_code = ? AND is_active = TRUE AND is_deleted = FALSE
        ORDER BY created_at DESC, id DESC`, eventFields))
	ret := []models.Event{}
	if err := r.db.SelectContext(ctx, &ret, query, code); err != nil {
		return nil, errors.Wrap(err, "FindByCode: Failed to query events")
	}
	return ret, nil
}

// FindByHost returns all non-deleted events of the given host - newest first
func (r *EventRepo) FindByHost(ctx context.Context, hostID string) ([]models.Event, error) {
	r.logger.WithField(log.FldHost, hostID).Debug("Listing events of host")
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM events
        WHERE host_id = ? AND is_deleted = FALSE
        ORDER BY created_at DESC, id DESC`, eventFields))
	ret := []models.Event{}
	if err := r.db.SelectContext(ctx, &ret, query, hostID); err != nil {
		return nil, errors.Wrap(err, "FindByHost: Failed to query events")
	}
	return ret, nil
}

// SetActive sets the host toggle of a non-deleted event
func (r *EventRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	r.logger.WithField(log.FldEvent, id).Debugf("Setting event active flag to %t", active)
	query := r.db.Rebind(`UPDATE events SET is_active = ?, updated_at = ? WHERE id = ? AND is_deleted = FALSE`)
	res, err := r.db.ExecContext(ctx, query, active, now, id)
	return checkAffected(res, err)
}

// SoftDelete flags a non-deleted event as deleted
func (r *EventRepo) SoftDelete(ctx context.Context, id string, now time.Time) error {
	r.logger.WithField(log.FldEvent, id).Debug("Deleting event")
	query := r.db.Rebind(`UPDATE events SET is_deleted = TRUE, updated_at = ?, deleted_at = ?
        WHERE id = ? AND is_deleted = FALSE`)
	res, err := r.db.ExecContext(ctx, query, now, now, id)
	return checkAffected(res, err)
}

// checkAffected translates an update that did not touch any row into ErrEntityNotExisting
func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return errors.Wrap(err, "Failed to update event")
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}
