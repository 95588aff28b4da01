package model

import "time"

// Cursor marks the last post returned by a feed page, so the
// next page starts strictly after it. Keyed on the sort value,
// never on an offset, so concurrent inserts cannot shift pages
type Cursor struct {
	LastCreatedAt time.Time `json:"last_created_at"`
	LastId        string    `json:"last_id"`
	HasMore       bool      `json:"has_more"`
}
