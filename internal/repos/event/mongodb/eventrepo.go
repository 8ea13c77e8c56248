// Package mongodb provides an event repository that stores its data as documents inside a MongoDB collection
package mongodb

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
)

// CollectionName is the name of the collection events are stored in
const CollectionName = "events"

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// EventRepo is a repository that stores events in MongoDB
type EventRepo struct {
	coll   *mongo.Collection
	logger *logrus.Entry
}

// New creates a new event repository working on the events collection of the given database
func New(db *mongo.Database, logger *logrus.Entry) *EventRepo {
	return &EventRepo{
		coll:   db.Collection(CollectionName),
		logger: logger,
	}
}

// EnsureIndexes creates the indexes the lookups of this repository rely on
func (r *EventRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stringCode", Value: 1}, {Key: "isActive", Value: 1}, {Key: "isDeleted", Value: 1}},
			Options: options.Index().SetName("string_code_idx"),
		},
		{
			Keys:    bson.D{{Key: "hostId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("host_created_idx"),
		},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return errors.Wrap(err, "EnsureIndexes: Failed to create event indexes")
}

// Create stores a new event
func (r *EventRepo) Create(ctx context.Context, ev *models.Event) error {
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Adding new event")
	_, err := r.coll.InsertOne(ctx, ev)
	return errors.Wrap(err, "Create: Failed to insert event")
}

// GetByID returns the event with the given ID
func (r *EventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.logger.WithField(log.FldEvent, id).Debug("Loading event")
	var ev models.Event
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrap(err, "GetByID: Failed to load event")
	}
	return &ev, nil
}

// FindByCode returns all active, non-deleted events holding the given string code - newest first
func (r *EventRepo) FindByCode(ctx context.Context, code string) ([]models.Event, error) {
	r.logger.WithField(log.FldCode, code).Debug("Searching events by code")
	return r.find(ctx, bson.M{"stringCode": code, "isActive": true, "isDeleted": false})
}

// FindByHost returns all non-deleted events of the given host - newest first
func (r *EventRepo) FindByHost(ctx context.Context, hostID string) ([]models.Event, error) {
	r.logger.WithField(log.FldHost, hostID).Debug("Listing events of host")
	return r.find(ctx, bson.M{"hostId": hostID, "isDeleted": false})
}

func (r *EventRepo) find(ctx context.Context, filter bson.M) ([]models.Event, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to query events")
	}
	ret := []models.Event{}
	if err := cur.All(ctx, &ret); err != nil {
		return nil, errors.Wrap(err, "Failed to decode events")
	}
	return ret, nil
}

// SetActive sets the host toggle of a non-deleted event
func (r *EventRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	r.logger.WithField(log.FldEvent, id).Debugf("Setting event active flag to %t", active)
	return r.update(ctx, id, bson.M{"isActive": active, "updatedAt": now})
}

// SoftDelete flags a non-deleted event as deleted
func (r *EventRepo) SoftDelete(ctx context.Context, id string, now time.Time) error {
	r.logger.WithField(log.FldEvent, id).Debug("Deleting event")
	return r.update(ctx, id, bson.M{"isDeleted": true, "updatedAt": now, "deletedAt": now})
}

func (r *EventRepo) update(ctx context.Context, id string, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "isDeleted": false}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "Failed to update event")
	}
	if res.MatchedCount == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}
