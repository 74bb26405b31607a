package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"document-service/internal/apperr"
	"document-service/internal/logger"
	"document-service/internal/models"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultQueue   = "document-service-events"
	handlerTimeout = 30 * time.Second
)

// AssetUpdater applies pipeline results to stored assets.
type AssetUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.AssetStatus, message *string) (*models.Asset, error)
	AddVariant(ctx context.Context, id string, v models.Variant) (*models.Asset, error)
}

// EventConsumer receives document.status and document.variant messages from
// the variant pipeline. Disabled when constructed with an empty URI.
type EventConsumer struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	queueName    string
	exchangeName string
	updater      AssetUpdater
	log          *logger.Logger
	shutdown     chan struct{}
	wg           sync.WaitGroup
	enabled      bool
}

func NewEventConsumer(rabbitURI, exchange, queue string, updater AssetUpdater, log *logger.Logger) (*EventConsumer, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "event_consumer")
	if exchange == "" {
		exchange = DefaultExchange
	}
	if queue == "" {
		queue = DefaultQueue
	}
	c := &EventConsumer{
		queueName:    queue,
		exchangeName: exchange,
		updater:      updater,
		log:          log,
		shutdown:     make(chan struct{}),
	}
	if rabbitURI == "" {
		log.Warn("RabbitMQ URI is empty, event consumption is disabled")
		return c, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	cleanup := func() {
		channel.Close()
		conn.Close()
	}
	if err := channel.Qos(10, 0, false); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := declareExchange(channel, exchange); err != nil {
		cleanup()
		return nil, err
	}
	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.enabled = true
	return c, nil
}

func (c *EventConsumer) Start() error {
	if !c.enabled {
		c.log.Info("Event consumption is disabled, not starting consumer")
		return nil
	}

	for _, routingKey := range []models.EventType{models.EventTypeDocumentStatus, models.EventTypeDocumentVariant} {
		if err := c.channel.QueueBind(c.queueName, string(routingKey), c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", routingKey, err)
		}
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(msgs)
	}()

	c.log.Info("Event consumer started", "queue", c.queueName)
	return nil
}

func (c *EventConsumer) consume(msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-c.shutdown:
			c.log.Info("Stopping event consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("Message channel closed, consumer stopped")
				return
			}
			c.handle(msg)
		}
	}
}

func (c *EventConsumer) handle(msg amqp091.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	err := c.processMessage(ctx, msg.RoutingKey, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			c.log.Error("Error ACKing message", "error", ackErr)
		}
	case requeue(err):
		c.log.Error("Error processing message, requeueing", "routing_key", msg.RoutingKey, "error", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.log.Error("Error NACKing message", "error", nackErr)
		}
	default:
		c.log.Warn("Dropping unprocessable message", "routing_key", msg.RoutingKey, "error", err)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.log.Error("Error NACKing message", "error", nackErr)
		}
	}
}

// requeue reports whether retrying could succeed. Malformed messages and
// unknown assets never will.
func requeue(err error) bool {
	return !errors.Is(err, apperr.ErrValidation) && !errors.Is(err, apperr.ErrNotFound)
}

func (c *EventConsumer) processMessage(ctx context.Context, routingKey string, body []byte) error {
	switch models.EventType(routingKey) {
	case models.EventTypeDocumentStatus:
		return c.handleStatus(ctx, body)
	case models.EventTypeDocumentVariant:
		return c.handleVariant(ctx, body)
	default:
		c.log.Debug("Ignoring message with unknown routing key", "routing_key", routingKey)
		return nil
	}
}

func (c *EventConsumer) handleStatus(ctx context.Context, body []byte) error {
	var event StatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.ErrValidation, err, "malformed status event")
	}
	status, ok := models.ParseAssetStatus(event.Status)
	if !ok {
		return apperr.Validation("unknown status %q", event.Status)
	}
	if _, err := c.updater.UpdateStatus(ctx, event.DocumentID, status, event.Message); err != nil {
		return err
	}
	c.log.Info("Document status updated", "document_id", event.DocumentID, "status", status)
	return nil
}

func (c *EventConsumer) handleVariant(ctx context.Context, body []byte) error {
	var event VariantEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.ErrValidation, err, "malformed variant event")
	}
	key, ok := models.ParseVariantKey(event.Key)
	if !ok {
		return apperr.Validation("unknown variant key %q", event.Key)
	}
	ready := true
	if event.Ready != nil {
		ready = *event.Ready
	}
	v := models.Variant{
		Key:         key,
		URL:         event.URL,
		ContentType: event.ContentType,
		Width:       event.Width,
		Height:      event.Height,
		BitrateKbps: event.BitrateKbps,
		Size:        event.Size,
		Ready:       ready,
	}
	if _, err := c.updater.AddVariant(ctx, event.DocumentID, v); err != nil {
		return err
	}
	c.log.Info("Document variant added", "document_id", event.DocumentID, "variant", key)
	return nil
}

func (c *EventConsumer) Close() error {
	if !c.enabled {
		return nil
	}
	close(c.shutdown)
	c.wg.Wait()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.log.Warn("Error closing RabbitMQ channel", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
