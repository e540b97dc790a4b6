// Package store provides the SQLite input history for the overlay.
package store

import (
	"time"

	"inputoverlay/internal/input"
)

// Entry is one recorded press or release.
type Entry struct {
	ID          int64
	SessionID   int64
	Code        input.Code
	Name        string
	Pressed     bool
	Device      int
	TimestampNs int64
}

// Event returns the press or release the entry records.
func (e Entry) Event() input.Event {
	ev := input.Press(e.Code, e.Pressed)
	ev.Device = e.Device
	ev.Timestamp = time.Unix(0, e.TimestampNs)
	return ev
}

// Count is the number of presses recorded for one code.
type Count struct {
	Code    input.Code
	Name    string
	Presses int64
	LastNs  int64
}

// Session groups the history written while one overlay ran.
type Session struct {
	ID      int64
	Layout  string
	StartNs int64
	EndNs   *int64
}

// Stats summarizes the history database.
type Stats struct {
	Entries  int64
	Presses  int64
	Codes    int64
	Sessions int64
	OldestNs int64
	NewestNs int64
}
