package model

import "time"

// IssuanceRecord is one row of the access_code_events audit table.
type IssuanceRecord struct {
	Code      string
	SessionID string
	Email     string
	Source    string // "checkout" or "webhook"
	IssuedAt  time.Time
}
