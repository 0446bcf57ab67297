package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/hotel-reservation/internal/config"
)

// StartBookingConsumer connects to RabbitMQ, declares the events queue
// (durable) and consumes messages until ctx is cancelled.  Each message is
// appended to cfg.BookingLogPath as one human-friendly line.  Broker
// failures trigger a reconnect with exponential backoff; malformed messages
// are logged and rejected without requeue so the loop keeps running.
func StartBookingConsumer(ctx context.Context, cfg config.QueueConfig, logger *log.Logger) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            logger.Warnf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !wait(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, cfg, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Warnf("booking-consumer: consume loop ended: %v; reconnecting", err)
        if !wait(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.QueueConfig, logger *log.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warnf("booking-consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(cfg.BookingLogPath, d.Body); err != nil {
                logger.Errorf("booking-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one event and appends its log line to path.
func HandleMessage(path string, body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders an event as a single newline-terminated log line.
func FormatLine(ev BookingEvent) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | event_id=%s | reservation_id=%d", ev.OccurredAt, ev.Type, ev.EventID, ev.ReservationID)
    if ev.CancellationID != 0 {
        fmt.Fprintf(&b, " | cancellation_id=%d", ev.CancellationID)
    }
    if ev.RoomID != 0 {
        fmt.Fprintf(&b, " | room_id=%d", ev.RoomID)
    }
    if ev.UserID != 0 {
        fmt.Fprintf(&b, " | user_id=%d", ev.UserID)
    }
    if ev.CheckIn != "" || ev.CheckOut != "" {
        fmt.Fprintf(&b, " | stay=%s..%s", ev.CheckIn, ev.CheckOut)
    }
    if ev.TotalAmountCents != 0 {
        fmt.Fprintf(&b, " | total=%d cents", ev.TotalAmountCents)
    }
    if len(ev.Dates) > 0 {
        fmt.Fprintf(&b, " | dates=[%s]", strings.Join(ev.Dates, ","))
    }
    if ev.Value != nil {
        fmt.Fprintf(&b, " | value=%t", *ev.Value)
    }
    b.WriteByte('\n')
    return b.String()
}

func wait(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
