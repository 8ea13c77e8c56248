// Package mongodb provides a message repository backed by a MongoDB collection
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

// CollectionName is the name of the collection messages are stored in
const CollectionName = "messages"

// MessageRepo is a repository that stores messages in MongoDB
type MessageRepo struct {
	coll   *mongo.Collection
	logger *logrus.Entry
}

// New creates a new message repository working on the messages collection of the given database
func New(db *mongo.Database, logger *logrus.Entry) *MessageRepo {
	return &MessageRepo{
		coll:   db.Collection(CollectionName),
		logger: logger,
	}
}

// EnsureIndexes creates the index used for listing the messages of an event
func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("event_created_idx"),
	})
	return errors.Wrap(err, "EnsureIndexes: Failed to create message index")
}

// Create appends a new message
func (r *MessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:   msg.EventID,
		log.FldMessage: msg.ID,
	}).Debug("Adding new message")
	_, err := r.coll.InsertOne(ctx, msg)
	return errors.Wrap(err, "Create: Failed to insert message")
}

// List returns the non-deleted messages of an event - newest first
func (r *MessageRepo) List(ctx context.Context, eventID string, publicOnly bool) ([]models.Message, error) {
	filter := bson.M{"eventId": eventID, "isDeleted": false}
	if publicOnly {
		filter["isPublic"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "List: Failed to query messages")
	}
	ret := []models.Message{}
	if err := cur.All(ctx, &ret); err != nil {
		return nil, errors.Wrap(err, "List: Failed to decode messages")
	}
	return ret, nil
}

// SoftDelete flags a non-deleted message of the given event as deleted
func (r *MessageRepo) SoftDelete(ctx context.Context, eventID, messageID string, now time.Time) error {
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:   eventID,
		log.FldMessage: messageID,
	}).Debug("Deleting message")
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "eventId": eventID, "isDeleted": false},
		bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now}},
	)
	if err != nil {
		return errors.Wrap(err, "SoftDelete: Failed to update message")
	}
	if res.MatchedCount == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}
