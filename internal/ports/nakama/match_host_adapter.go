package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"turnbase/internal/domain"
	"turnbase/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaMatchHostAdapter implements ports.MatchHost on the Nakama match
// registry: it spawns authoritative match instances, signals live ones, and
// lists them through label queries.
type NakamaMatchHostAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaMatchHostAdapter creates a new match host adapter.
func NewNakamaMatchHostAdapter(nk runtime.NakamaModule) *NakamaMatchHostAdapter {
	return &NakamaMatchHostAdapter{nk: nk}
}

var _ ports.MatchHost = (*NakamaMatchHostAdapter)(nil)

// Spawn creates a new live match instance with the requested capacity and
// creator and returns its match id.
func (a *NakamaMatchHostAdapter) Spawn(ctx context.Context, size int, creator string) (string, error) {
	params := map[string]interface{}{
		"size":    size,
		"creator": creator,
	}
	matchID, err := a.nk.MatchCreate(ctx, MatchNameTurnbase, params)
	if err != nil {
		return "", fmt.Errorf("failed to create match instance: %w", err)
	}
	return matchID, nil
}

// settingsSignal is the wire form of the reconciliation payload.
type settingsSignal struct {
	Type string `json:"type"`
	domain.SettingsUpdate
}

// SignalSettings pushes a committed settings change into the live instance.
// At-most-once: if no instance is live the signal is lost and the error is
// returned for the caller to log and discard.
func (a *NakamaMatchHostAdapter) SignalSettings(ctx context.Context, matchID string, update domain.SettingsUpdate) error {
	data, err := json.Marshal(settingsSignal{Type: SignalUpdateSettings, SettingsUpdate: update})
	if err != nil {
		return fmt.Errorf("failed to marshal settings signal: %w", err)
	}
	if _, err := a.nk.MatchSignal(ctx, matchID, string(data)); err != nil {
		return fmt.Errorf("failed to signal match %s: %w", matchID, err)
	}
	return nil
}

// ListOpen lists live matches of this module that still have open seats.
func (a *NakamaMatchHostAdapter) ListOpen(ctx context.Context, limit int) ([]ports.LiveMatch, error) {
	query := fmt.Sprintf("+label.mode:%s +label.open:T", LabelMode)
	authoritative := true

	matches, err := a.nk.MatchList(ctx, limit, authoritative, "", nil, nil, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	live := make([]ports.LiveMatch, 0, len(matches))
	for _, m := range matches {
		var label Label
		if err := json.Unmarshal([]byte(m.GetLabel().GetValue()), &label); err != nil {
			continue
		}
		live = append(live, ports.LiveMatch{
			MatchID: m.GetMatchId(),
			Size:    label.Size,
			Players: label.Players,
			Started: label.Started,
		})
	}
	return live, nil
}
