// Package amqpbc distributes feed notifications between instances using a RabbitMQ fanout exchange.
// Every instance consumes from its own exclusive, auto-deleted queue bound to the exchange.
package amqpbc

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/log"
)

// Broadcaster publishes the IDs of changed events to a fanout exchange
type Broadcaster struct {
	url      string
	exchange string
	logger   *logrus.Entry

	mtx   sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
}

// Dial connects to the broker and declares the exchange
func Dial(url, exchange string, logger *logrus.Entry) (*Broadcaster, error) {
	b := &Broadcaster{
		url:      url,
		exchange: exchange,
		logger:   logger.WithField(log.FldBroker, "amqp"),
	}
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if _, err := b.connection(); err != nil {
		return nil, err
	}
	return b, nil
}

// connection returns the current broker connection, redialing if it has been closed. The caller holds mtx.
func (b *Broadcaster) connection() (*amqp.Connection, error) {
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to dial AMQP broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "Failed to open AMQP channel")
	}
	// name, kind, durable, autoDelete, internal, noWait, args
	if err := ch.ExchangeDeclare(b.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "Failed to declare exchange '%s'", b.exchange)
	}
	b.conn = conn
	b.pubCh = ch
	b.logger.Info("Connected to AMQP broker")
	return conn, nil
}

// Publish announces that the messages of the given event have changed
func (b *Broadcaster) Publish(ctx context.Context, eventID string) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if _, err := b.connection(); err != nil {
		return err
	}
	if b.pubCh.IsClosed() {
		ch, err := b.conn.Channel()
		if err != nil {
			return errors.Wrap(err, "Publish: Failed to reopen AMQP channel")
		}
		b.pubCh = ch
	}
	err := b.pubCh.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType: "text/plain",
		Timestamp:   time.Now().UTC(),
		Body:        []byte(eventID),
	})
	return errors.Wrap(err, "Publish: Failed to publish to AMQP exchange")
}

// Listen consumes notifications from a private queue bound to the exchange until ctx ends or the connection breaks
func (b *Broadcaster) Listen(ctx context.Context, connected func(), deliver func(eventID string)) error {
	b.mtx.Lock()
	conn, err := b.connection()
	b.mtx.Unlock()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "Listen: Failed to open AMQP channel")
	}
	defer ch.Close()
	// Server-named, non-durable, auto-deleted, exclusive
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return errors.Wrap(err, "Listen: Failed to declare queue")
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return errors.Wrap(err, "Listen: Failed to bind queue")
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "Listen: Failed to consume")
	}
	b.logger.Infof("Listening for feed notifications on exchange '%s'", b.exchange)
	connected()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("Listen: AMQP delivery channel closed")
			}
			deliver(string(d.Body))
		}
	}
}

// Close closes the broker connection
func (b *Broadcaster) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}
