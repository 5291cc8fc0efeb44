package model

import "time"

// AccessCode is the record stored under code:<CODE>.  It is written once when
// a paid checkout session is first redeemed and never mutated afterwards.
//
// Fields:
//  Code      – the human-typeable token, e.g. BS-7KQ2M-XW9PD.
//  SessionID – identifier of the payment confirmation that produced it.
//  Email     – contact captured at issuance; empty when the provider had none.
//  CreatedAt – issuance timestamp (UTC).
type AccessCode struct {
	Code      string    `json:"code"`
	SessionID string    `json:"session_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
