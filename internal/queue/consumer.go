// Package queue contains the background consumer that listens to the
// access_code.issued queue and copies each event into the audit ledger.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/access-gate/internal/model"
)

// IssuanceSink receives decoded events.  repository.AuditRepo implements it.
type IssuanceSink interface {
    InsertIssued(ctx context.Context, rec model.IssuanceRecord) error
}

// StartIssuanceConsumer connects to RabbitMQ, declares the access_code.issued
// queue (durable), and starts consuming messages. The function runs a
// reconnect loop and never returns; processing errors are logged and the
// offending message is rejected so the server keeps running.
func StartIssuanceConsumer(url string, sink IssuanceSink) {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("issuance-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn, sink); err != nil {
            log.Printf("issuance-consumer: consume loop ended: %v; reconnecting", err)
            _ = conn.Close()
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection, sink IssuanceSink) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("issuance-consumer: set QoS failed: %v", err)
    }

    _, err = ch.QueueDeclare(CodeIssuedQueue, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(CodeIssuedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(context.Background(), sink, d.Body); err != nil {
            log.Printf("issuance-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(ctx context.Context, sink IssuanceSink, body []byte) error {
    var ev CodeIssuedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Code == "" || ev.SessionID == "" {
        return errors.New("event without code or session_id")
    }
    issuedAt, err := time.Parse(time.RFC3339Nano, ev.CreatedAt)
    if err != nil {
        issuedAt = time.Now().UTC()
    }

    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := sink.InsertIssued(ctx, model.IssuanceRecord{
        Code:      ev.Code,
        SessionID: ev.SessionID,
        Email:     ev.Email,
        Source:    ev.Source,
        IssuedAt:  issuedAt,
    }); err != nil {
        return fmt.Errorf("insert audit row: %w", err)
    }
    return nil
}
