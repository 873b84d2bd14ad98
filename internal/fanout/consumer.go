package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/taskmate/tmbot/internal/config"
	"github.com/taskmate/tmbot/internal/shared"
)

// Processor handles one parsed event.
type Processor interface {
	Process(ctx context.Context, ev Event) (Result, error)
}

// ReconnectPolicy is the backoff between broker connection attempts.
var ReconnectPolicy = shared.RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// requeueDelay slows down redelivery of events that failed on
// infrastructure errors.
const requeueDelay = 2 * time.Second

// Consumer subscribes a durable queue to the events exchange and feeds
// deliveries to a Processor. Messages are acknowledged only after
// processing, so a crash leads to redelivery.
type Consumer struct {
	url       string
	cfg       config.BrokerConfig
	processor Processor
	logger    *slog.Logger
	connected atomic.Bool
}

// NewConsumer creates a consumer for the broker at url.
func NewConsumer(url string, cfg config.BrokerConfig, processor Processor, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{url: url, cfg: cfg, processor: processor, logger: logger}
}

// Connected reports whether a broker channel is currently consuming.
func (c *Consumer) Connected() bool {
	return c.connected.Load()
}

// Run consumes until ctx is done, reconnecting with backoff whenever the
// connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := c.consume(ctx, func() { attempt = 0 })
		c.connected.Store(false)
		if ctx.Err() != nil {
			c.logger.Info("Event consumer shutting down", "reason", ctx.Err())
			return nil
		}

		delay := ReconnectPolicy.Delay(attempt)
		attempt++
		c.logger.Warn("Broker connection lost, reconnecting", "error", err, "attempt", attempt, "delay", delay)
		if err := shared.Sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// consume runs one connection lifetime. ready is called once the
// subscription is established.
func (c *Consumer) consume(ctx context.Context, ready func()) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := c.subscribe(ctx, ch)
	if err != nil {
		return err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.connected.Store(true)
	ready()
	c.logger.Info("Event consumer started", "exchange", c.cfg.Exchange, "queue", c.cfg.Queue, "prefetch", c.cfg.Prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) subscribe(ctx context.Context, ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, "", c.cfg.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, nil
}

// handle processes one delivery. Undecodable messages are acknowledged
// and dropped; infrastructure failures are requeued after a short pause.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	logger := c.logger.With("trace_id", uuid.NewString(), "delivery_tag", d.DeliveryTag)

	ev, err := ParseEvent(d.Body)
	if err != nil {
		logger.Warn("Dropping event", "error", err, "redelivered", d.Redelivered)
		c.ack(logger, d)
		return
	}
	logger = logger.With("event", ev.Kind, "task_id", ev.Task.ID)

	res, err := c.processor.Process(ctx, ev)
	if err != nil {
		logger.Error("Event processing failed, requeueing", "error", err)
		_ = shared.Sleep(ctx, requeueDelay)
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Error("Failed to nack event", "error", nackErr)
		}
		return
	}

	logger.Info("Event processed", "delivered", res.Delivered, "duplicates", res.Duplicates,
		"unresolved", res.Unresolved, "failed", res.Failed)
	c.ack(logger, d)
}

func (c *Consumer) ack(logger *slog.Logger, d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		logger.Error("Failed to ack event", "error", err)
	}
}
