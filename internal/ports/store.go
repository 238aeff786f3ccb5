package ports

import (
	"context"
	"errors"

	"turnbase/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist in the store.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a compare-and-write is rejected
	// because the supplied version token is stale. Conflict is an expected
	// outcome under concurrent writers, not a fault.
	ErrVersionConflict = errors.New("version conflict")
)

// MatchStore is the versioned key-value store backing match coordination.
// Every read returns an opaque version token; every write validates one.
type MatchStore interface {
	// CreateMatch writes the initial record for a match. Fails with
	// ErrVersionConflict if a record already exists for the key.
	CreateMatch(ctx context.Context, record domain.MatchRecord) error

	// ReadMatch returns the record and its current version token, or
	// ErrNotFound.
	ReadMatch(ctx context.Context, matchID string) (domain.MatchRecord, string, error)

	// WriteMatch compare-and-writes the record against the supplied version
	// token and returns the new token, or ErrVersionConflict.
	WriteMatch(ctx context.Context, record domain.MatchRecord, version string) (string, error)

	// WriteTurn applies the match compare-and-write and the create-only turn
	// write as one atomic batch: either both commit or neither does.
	WriteTurn(ctx context.Context, record domain.MatchRecord, version string, turn domain.TurnRecord) (string, error)

	// ReadTurns reads the turn records for indices from..to inclusive,
	// silently omitting any that are missing.
	ReadTurns(ctx context.Context, matchID string, from, to int64) ([]domain.TurnRecord, error)

	// ListMatches returns one page of match records plus a cursor for the
	// next page; an empty cursor means the listing is exhausted.
	ListMatches(ctx context.Context, limit int, cursor string) ([]domain.MatchRecord, string, error)
}
