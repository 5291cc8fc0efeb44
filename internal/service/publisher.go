package service

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/access-gate/internal/queue"
)

// Publisher sends domain events to RabbitMQ.  Errors are logged and returned
// so callers can ignore them without interrupting the request flow.
type Publisher struct {
    url string
}

// NewPublisher returns a publisher for the broker at url.  An empty url
// yields a publisher whose calls are no-ops.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// PublishCodeIssued publishes a CodeIssuedEvent to the "access_code.issued"
// queue. Messages are marked as persistent.
func (p *Publisher) PublishCodeIssued(ctx context.Context, event q.CodeIssuedEvent) error {
    if p == nil || p.url == "" {
        return nil
    }
    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.CodeIssuedQueue, // name
        true,              // durable
        false,             // autoDelete
        false,             // exclusive
        false,             // noWait
        nil,               // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",                // default exchange
        q.CodeIssuedQueue, // routing key = queue name
        false,             // mandatory
        false,             // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
