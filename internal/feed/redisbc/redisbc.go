// Package redisbc distributes feed notifications between instances using Redis Pub/Sub
package redisbc

import (
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/log"
)

// Broadcaster publishes the IDs of changed events on a Redis channel
type Broadcaster struct {
	client  *redis.Client
	channel string
	logger  *logrus.Entry
}

// Connect creates a Redis client and checks that the server can be reached
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "Connect: Redis at '%s' cannot be reached", addr)
	}
	return client, nil
}

// New creates a broadcaster using the given client and channel name
func New(client *redis.Client, channel string, logger *logrus.Entry) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish announces that the messages of the given event have changed
func (b *Broadcaster) Publish(ctx context.Context, eventID string) error {
	err := b.client.Publish(ctx, b.channel, eventID).Err()
	return errors.Wrap(err, "Publish: Failed to publish to Redis")
}

// Listen calls deliver for every event ID published on the channel until ctx ends or the subscription breaks.
// connected is called after the initial subscription and again after each transparent resubscription of the client.
func (b *Broadcaster) Listen(ctx context.Context, connected func(), deliver func(eventID string)) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()
	// Wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		return errors.Wrap(err, "Listen: Failed to subscribe to Redis channel")
	}
	b.logger.WithField(log.FldBroker, "redis").Infof("Listening for feed notifications on '%s'", b.channel)
	ch := ps.ChannelWithSubscriptions()
	connected()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return errors.New("Listen: Redis subscription closed")
			}
			switch msg := m.(type) {
			case *redis.Message:
				deliver(msg.Payload)
			case *redis.Subscription:
				if msg.Kind == "subscribe" {
					b.logger.WithField(log.FldBroker, "redis").Info("Redis subscription re-established")
					connected()
				}
			}
		}
	}
}

// Close closes the Redis client
func (b *Broadcaster) Close() error {
	return b.client.Close()
}
