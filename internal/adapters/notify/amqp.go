package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/pkg/logger"
)

// Defaults for the RabbitMQ publisher.
const (
	DefaultQueue          = "resume_outcomes"
	defaultPublishTimeout = 5 * time.Second
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes events as JSON messages on a durable RabbitMQ queue.
type AMQP struct {
	conn    *amqp.Connection
	queue   string
	timeout time.Duration
	logger  logger.Logger

	mu     sync.Mutex
	ch     channel
	closed bool
}

// AMQPOption configures the publisher.
type AMQPOption func(*AMQP)

// WithQueue sets the queue name.
func WithQueue(name string) AMQPOption {
	return func(a *AMQP) {
		if name != "" {
			a.queue = name
		}
	}
}

// WithPublishTimeout bounds each publish.
func WithPublishTimeout(d time.Duration) AMQPOption {
	return func(a *AMQP) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the publisher logger.
func WithLogger(l logger.Logger) AMQPOption {
	return func(a *AMQP) {
		if l != nil {
			a.logger = l
		}
	}
}

// DialAMQP connects to the broker and declares the queue.
func DialAMQP(url string, opts ...AMQPOption) (*AMQP, error) {
	a := newAMQP(opts)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		a.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", a.queue, err)
	}

	a.conn = conn
	a.ch = ch
	a.logger.Info(context.Background(), "connected to RabbitMQ", logger.String("queue", a.queue))
	return a, nil
}

func newAMQP(opts []AMQPOption) *AMQP {
	a := &AMQP{
		queue:   DefaultQueue,
		timeout: defaultPublishTimeout,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Publish sends ev to the default exchange routed to the queue.
func (a *AMQP) Publish(ctx context.Context, ev model.ResumeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err = a.ch.PublishWithContext(ctx,
		"",      // exchange
		a.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ResumeID,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.ResumeID, err)
	}
	return nil
}

// Close closes the channel and connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.ch != nil {
		err = a.ch.Close()
	}
	if a.conn != nil {
		if cerr := a.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
