package model

import "time"

// ZoneInputs is the free-form text saved for one page of a code's workspace,
// stored under zone_inputs:<CODE>:<path>.
type ZoneInputs struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Data      map[string]string `json:"data"`
}
