package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange car events are published to.
const DefaultExchange = "vehicles.cars"

// defaultDialTimeout bounds connecting and the AMQP handshake when the caller's context
// has no earlier deadline.
const defaultDialTimeout = 5 * time.Second

// RabbitMQPublisher publishes events to a durable topic exchange with the event type as
// routing key. The connection is opened lazily and re-dialed after the broker drops it.
type RabbitMQPublisher struct {
	url         string
	exchange    string
	logger      *zap.Logger
	dialTimeout time.Duration

	// dialing admits one dial at a time; waiters give up when their context ends.
	dialing chan struct{}

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQPublisher creates a publisher for url. Nothing is dialed until Connect or
// the first Publish.
func NewRabbitMQPublisher(url, exchange string, logger *zap.Logger) *RabbitMQPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitMQPublisher{
		url:         url,
		exchange:    exchange,
		logger:      logger,
		dialTimeout: defaultDialTimeout,
		dialing:     make(chan struct{}, 1),
	}
}

// Connect dials the broker and declares the exchange. Safe to call repeatedly.
func (p *RabbitMQPublisher) Connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()
	_, err := p.channel(ctx)
	return err
}

// current returns the open channel, or nil when there is none.
func (p *RabbitMQPublisher) current() *amqp.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch
	}
	return nil
}

// channel returns the open channel, dialing when needed. The mutex is never held while
// dialing, so a hung broker only delays callers up to their own context deadline.
func (p *RabbitMQPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if ch := p.current(); ch != nil {
		return ch, nil
	}
	select {
	case p.dialing <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("rabbitmq: connect: %w", ctx.Err())
	}
	defer func() { <-p.dialing }()

	if ch := p.current(); ch != nil {
		return ch, nil
	}
	conn, ch, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	_ = p.closeLocked()
	p.conn, p.ch = conn, ch
	p.mu.Unlock()
	p.logger.Info("rabbitmq publisher connected", zap.String("exchange", p.exchange))
	return ch, nil
}

func (p *RabbitMQPublisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	deadline := time.Now().Add(p.dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var stop func() bool
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// amqp clears the deadline once the handshake completes.
			if err := c.SetDeadline(deadline); err != nil {
				_ = c.Close()
				return nil, err
			}
			stop = context.AfterFunc(ctx, func() { _ = c.SetDeadline(time.Now()) })
			return c, nil
		},
	})
	if stop != nil {
		stop()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("rabbitmq: dial: %w: %w", ctxErr, err)
		}
		return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", p.exchange, err)
	}
	return conn, ch, nil
}

// Publish sends e as a persistent JSON message.
func (p *RabbitMQPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := buildPublishing(e)
	if err != nil {
		return err
	}
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx,
		p.exchange,     // exchange
		string(e.Type), // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.mu.Lock()
			if p.ch == ch {
				_ = p.closeLocked()
			}
			p.mu.Unlock()
		}
		return fmt.Errorf("rabbitmq: publish %s: %w", e.Type, err)
	}
	return nil
}

func buildPublishing(e Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     e.ID,
		CorrelationId: e.CorrelationID,
		Type:          string(e.Type),
		Timestamp:     e.OccurredAt,
		Body:          body,
	}, nil
}

// Close closes the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *RabbitMQPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}
