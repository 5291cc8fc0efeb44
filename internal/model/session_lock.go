package model

import "time"

// SessionLock is the record stored under active_session:<CODE>.  At most one
// exists per code; it disappears on release by its owner or when its TTL
// lapses without a heartbeat.
//
// Fields:
//  ClientID   – opaque identity of the device/browser holding the code.
//  AcquiredAt – when the current owner first obtained the lock.
//  LastSeenAt – time of the most recent acquire or heartbeat.
type SessionLock struct {
	ClientID   string    `json:"client_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
