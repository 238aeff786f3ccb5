package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"turnbase/internal/config"
	"turnbase/internal/domain"
	"turnbase/internal/ports"
)

// Service implements the match coordination use-cases over the store and host
// ports. Handlers are stateless and perform exactly one read-modify-write
// cycle each; a version conflict is surfaced to the caller, never retried
// internally.
type Service struct {
	store ports.MatchStore
	host  ports.MatchHost
	now   func() time.Time
}

// NewService constructs a Service with required ports.
// store/host must be non-nil; now may be nil to use time.Now.
func NewService(store ports.MatchStore, host ports.MatchHost, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store: store,
		host:  host,
		now:   now,
	}
}

// CreateMatchResult is returned by CreateMatch.
type CreateMatchResult struct {
	MatchID string
	Size    int
}

// JoinMatchResult is returned by JoinMatch. Joined is false when the caller
// was already a member and the call was a no-op.
type JoinMatchResult struct {
	MatchID string
	Size    int
	Players []string
	Joined  bool
}

// LeaveMatchResult is returned by LeaveMatch. Left is false when the caller
// was not a member.
type LeaveMatchResult struct {
	MatchID string
	Players []string
	Left    bool
}

// SubmitTurnResult carries the turn index assigned to an accepted submission.
type SubmitTurnResult struct {
	Turn int64
}

// MatchState is the read-only view returned by GetState.
type MatchState struct {
	Match domain.MatchRecord
	Turns []domain.TurnRecord
}

// UpdateSettingsResult is returned by UpdateSettings with the committed
// values.
type UpdateSettingsResult struct {
	MatchID string
	Size    int
	Cols    int
	Rows    int
}

// CreateMatch spawns a live match instance and writes its initial durable
// record. A missing or non-positive size falls back to the configured
// default; anything else is stored as given.
func (s *Service) CreateMatch(ctx context.Context, creator string, size int) (CreateMatchResult, error) {
	if size < 1 {
		size = config.GetDefaultCapacity()
	}

	matchID, err := s.host.Spawn(ctx, size, creator)
	if err != nil {
		return CreateMatchResult{}, internalError(err)
	}

	record := domain.MatchRecord{
		MatchID:     matchID,
		Players:     []string{},
		Size:        size,
		CreatedAt:   s.now().Unix(),
		CurrentTurn: 0,
		Creator:     creator,
	}
	if err := s.store.CreateMatch(ctx, record); err != nil {
		return CreateMatchResult{}, internalError(err)
	}

	return CreateMatchResult{MatchID: matchID, Size: size}, nil
}

// JoinMatch adds the caller to the durable membership. Rejoining is a no-op;
// a full match fails with ErrMatchFull; a stale version fails with
// ErrConflict and the caller must re-read and retry.
func (s *Service) JoinMatch(ctx context.Context, caller, matchID string) (JoinMatchResult, error) {
	if matchID == "" {
		return JoinMatchResult{}, ErrMatchIDRequired
	}

	record, version, err := s.store.ReadMatch(ctx, matchID)
	if err != nil {
		return JoinMatchResult{}, asReadError(err)
	}

	if record.HasPlayer(caller) {
		return JoinMatchResult{
			MatchID: matchID,
			Size:    record.Size,
			Players: record.Players,
			Joined:  false,
		}, nil
	}

	if len(record.Players) >= record.Size {
		return JoinMatchResult{}, ErrMatchFull
	}

	record.AddPlayer(caller)
	if _, err := s.store.WriteMatch(ctx, record, version); err != nil {
		return JoinMatchResult{}, asWriteError(err)
	}

	return JoinMatchResult{
		MatchID: matchID,
		Size:    record.Size,
		Players: record.Players,
		Joined:  true,
	}, nil
}

// LeaveMatch removes the caller from the durable membership. Leaving a match
// the caller is not in is a no-op.
func (s *Service) LeaveMatch(ctx context.Context, caller, matchID string) (LeaveMatchResult, error) {
	if matchID == "" {
		return LeaveMatchResult{}, ErrMatchIDRequired
	}

	record, version, err := s.store.ReadMatch(ctx, matchID)
	if err != nil {
		return LeaveMatchResult{}, asReadError(err)
	}

	if !record.RemovePlayer(caller) {
		return LeaveMatchResult{
			MatchID: matchID,
			Players: record.Players,
			Left:    false,
		}, nil
	}

	if _, err := s.store.WriteMatch(ctx, record, version); err != nil {
		return LeaveMatchResult{}, asWriteError(err)
	}

	return LeaveMatchResult{
		MatchID: matchID,
		Players: record.Players,
		Left:    true,
	}, nil
}

// SubmitTurn records a move. Submitting counts as joining: a non-member
// caller is added to the membership with no capacity check, unlike JoinMatch.
// The match record CAS and the turn record are committed as one atomic batch,
// so a stale writer can never create a duplicate or skipped turn index.
func (s *Service) SubmitTurn(ctx context.Context, caller, matchID string, move json.RawMessage) (SubmitTurnResult, error) {
	if matchID == "" {
		return SubmitTurnResult{}, ErrMatchIDRequired
	}

	record, version, err := s.store.ReadMatch(ctx, matchID)
	if err != nil {
		return SubmitTurnResult{}, asReadError(err)
	}

	record.AddPlayer(caller)
	record.CurrentTurn++

	turn := domain.TurnRecord{
		MatchID:   matchID,
		Turn:      record.CurrentTurn,
		Player:    caller,
		Move:      move,
		CreatedAt: s.now().Unix(),
	}

	if _, err := s.store.WriteTurn(ctx, record, version, turn); err != nil {
		return SubmitTurnResult{}, asWriteError(err)
	}

	return SubmitTurnResult{Turn: record.CurrentTurn}, nil
}

// GetState returns the match record plus a window of the most recent turns.
// Individually missing turn records are omitted rather than failing the call.
func (s *Service) GetState(ctx context.Context, matchID string) (MatchState, error) {
	if matchID == "" {
		return MatchState{}, ErrMatchIDRequired
	}

	record, _, err := s.store.ReadMatch(ctx, matchID)
	if err != nil {
		return MatchState{}, asReadError(err)
	}

	turns := []domain.TurnRecord{}
	if record.CurrentTurn > 0 {
		from := record.CurrentTurn - int64(config.GetTurnHistoryWindow()) + 1
		if from < 1 {
			from = 1
		}
		turns, err = s.store.ReadTurns(ctx, matchID, from, record.CurrentTurn)
		if err != nil {
			return MatchState{}, internalError(err)
		}
	}

	return MatchState{Match: record, Turns: turns}, nil
}

// UpdateSettings applies a creator-only settings change to the durable
// record, clamping each present field. Pushing the change into the live
// instance is a separate, best-effort step (NotifySettings).
func (s *Service) UpdateSettings(ctx context.Context, caller, matchID string, update domain.SettingsUpdate) (UpdateSettingsResult, error) {
	if matchID == "" {
		return UpdateSettingsResult{}, ErrMatchIDRequired
	}

	record, version, err := s.store.ReadMatch(ctx, matchID)
	if err != nil {
		return UpdateSettingsResult{}, asReadError(err)
	}

	if record.Creator == "" || caller != record.Creator {
		return UpdateSettingsResult{}, ErrNotCreator
	}

	update.Apply(&record)
	if _, err := s.store.WriteMatch(ctx, record, version); err != nil {
		return UpdateSettingsResult{}, asWriteError(err)
	}

	return UpdateSettingsResult{
		MatchID: matchID,
		Size:    record.Size,
		Cols:    record.Cols,
		Rows:    record.Rows,
	}, nil
}

// NotifySettings signals the live match instance with a committed settings
// change so connected clients see it without re-fetching. Delivery is
// at-most-once; the caller is expected to log the returned status and
// discard it, because the durable write is the authoritative outcome.
func (s *Service) NotifySettings(ctx context.Context, matchID string, update domain.SettingsUpdate) error {
	return s.host.SignalSettings(ctx, matchID, update)
}

// ListMyMatches returns every stored match whose membership contains the
// caller, following the store cursor across pages.
func (s *Service) ListMyMatches(ctx context.Context, caller string) ([]domain.MatchRecord, error) {
	mine := []domain.MatchRecord{}
	cursor := ""
	for {
		page, next, err := s.store.ListMatches(ctx, listPageSize, cursor)
		if err != nil {
			return nil, internalError(err)
		}
		for _, record := range page {
			if record.HasPlayer(caller) {
				mine = append(mine, record)
			}
		}
		if next == "" {
			return mine, nil
		}
		cursor = next
	}
}

// ListOpenMatches returns live matches that still have open seats.
func (s *Service) ListOpenMatches(ctx context.Context, limit int) ([]ports.LiveMatch, error) {
	live, err := s.host.ListOpen(ctx, limit)
	if err != nil {
		return nil, internalError(err)
	}
	return live, nil
}

func asReadError(err error) *Error {
	if errors.Is(err, ports.ErrNotFound) {
		return ErrMatchNotFound
	}
	return internalError(err)
}

func asWriteError(err error) *Error {
	if errors.Is(err, ports.ErrVersionConflict) {
		return ErrConflict
	}
	return internalError(err)
}
