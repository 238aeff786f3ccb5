package ports

import (
	"context"

	"turnbase/internal/domain"
)

// LiveMatch is a discovery snapshot of a running match instance, derived from
// its published label.
type LiveMatch struct {
	MatchID string
	Size    int
	Players int
	Started bool
}

// MatchHost is the interface to the runtime facility that owns live match
// instances: it spawns them, routes signals to them, and lists them.
type MatchHost interface {
	// Spawn instantiates a new live match instance and returns its id.
	Spawn(ctx context.Context, size int, creator string) (string, error)

	// SignalSettings pushes a settings change into the live instance for
	// matchID. Delivery is at-most-once; if no instance is live the signal is
	// lost and an error is returned for the caller to log and discard.
	SignalSettings(ctx context.Context, matchID string, update domain.SettingsUpdate) error

	// ListOpen returns up to limit live matches that still have open seats.
	ListOpen(ctx context.Context, limit int) ([]LiveMatch, error)
}
