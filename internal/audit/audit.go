// Package audit records administrative actions against devices.
//
// Every admin action that queues a command writes one entry naming the
// device, the command and the wake outcome. Entries are append-only.
package audit

import "time"

// Actions recorded by the admin service.
const (
	ActionNotify          = "notify"
	ActionEnableLostMode  = "lost_mode.enable"
	ActionDisableLostMode = "lost_mode.disable"
	ActionUnenroll        = "unenroll"
	ActionQuery           = "query"
	ActionLock            = "lock"
	ActionErase           = "erase"
	ActionCommand         = "command"
)

// Entity types.
const (
	EntityDevice = "device"
)

// Sources.
const (
	SourceAPI = "api"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Limit      int // default 50, max 200
	Offset     int
}

// normalise clamps the page bounds.
func (f Filter) normalise() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
