// Package queue_publisher publishes booking events to RabbitMQ.  Errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow: events are emitted after the data has committed.
package queue_publisher

import (
    "context"
    "encoding/json"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/hotel-reservation/internal/config"
    q "github.com/iliyamo/hotel-reservation/internal/queue"
)

// AMQPPublisher implements booking.EventPublisher.  It dials the broker
// per publish; booking writes are rare enough that a pooled channel is not
// worth its reconnect handling.
type AMQPPublisher struct {
    cfg    config.QueueConfig
    logger *log.Logger
}

// NewAMQPPublisher returns a publisher for cfg.URL and cfg.Queue.
func NewAMQPPublisher(cfg config.QueueConfig, logger *log.Logger) *AMQPPublisher {
    return &AMQPPublisher{cfg: cfg, logger: logger}
}

// Publish sends event to the configured queue as a persistent JSON
// message with the event id as message id.
func (p *AMQPPublisher) Publish(ctx context.Context, event q.BookingEvent) error {
    conn, err := amqp.Dial(p.cfg.URL)
    if err != nil {
        p.logger.Warnf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.logger.Warnf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        p.cfg.Queue, // name
        true,        // durable
        false,       // autoDelete
        false,       // exclusive
        false,       // noWait
        nil,         // args
    ); err != nil {
        p.logger.Warnf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        p.logger.Errorf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    event.EventID,
        Type:         event.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",          // default exchange
        p.cfg.Queue, // routing key = queue name
        false,       // mandatory
        false,       // immediate
        pub,
    ); err != nil {
        p.logger.Warnf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
