// Package queue defines message payloads exchanged over the message broker.
package queue

// CodeIssuedQueue is the durable queue carrying CodeIssuedEvent messages.
const CodeIssuedQueue = "access_code.issued"

// CodeIssuedEvent is published when a checkout session is redeemed for a new
// access code.  Replays of an already issued code do not publish.
type CodeIssuedEvent struct {
    Code      string `json:"code"`
    SessionID string `json:"session_id"`
    Email     string `json:"email"`
    Source    string `json:"source"`
    CreatedAt string `json:"created_at"`
}
