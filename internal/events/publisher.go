package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"document-service/internal/logger"
	"document-service/internal/models"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "document.events"
	publishTimeout  = 5 * time.Second
)

// EventPublisher publishes document events to a topic exchange. With an
// empty URI it is constructed disabled and every publish is a logged no-op.
type EventPublisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool
	log          *logger.Logger
}

func NewEventPublisher(rabbitURI, exchange string, log *logger.Logger) (*EventPublisher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "event_publisher")
	if exchange == "" {
		exchange = DefaultExchange
	}
	if rabbitURI == "" {
		log.Warn("RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{exchangeName: exchange, log: log}, nil
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
	if err := declareExchange(channel, exchange); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &EventPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchange,
		enabled:      true,
		log:          log,
	}, nil
}

func declareExchange(channel *amqp091.Channel, name string) error {
	err := channel.ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

func (p *EventPublisher) Enabled() bool { return p.enabled }

func (p *EventPublisher) publishEvent(ctx context.Context, routingKey models.EventType, event any) error {
	if !p.enabled {
		p.log.Debug("Event publishing is disabled, skipping event", "routing_key", routingKey)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName,
		string(routingKey),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	p.log.Debug("Published event", "routing_key", routingKey)
	return nil
}

func (p *EventPublisher) PublishDocumentUploaded(ctx context.Context, asset *models.Asset) error {
	return p.publishEvent(ctx, models.EventTypeDocumentUploaded, NewDocumentUploadedEvent(asset))
}

func (p *EventPublisher) PublishDocumentDeleted(ctx context.Context, documentID, blobName string) error {
	return p.publishEvent(ctx, models.EventTypeDocumentDeleted, NewDocumentDeletedEvent(documentID, blobName))
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn("Error closing RabbitMQ channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
