package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"turnbase/internal/app"
	"turnbase/internal/domain"
	"turnbase/internal/ports"
)

// memStore is a minimal versioned store for exercising the RPC envelopes.
type memStore struct {
	matches map[string]domain.MatchRecord
	version map[string]int
	turns   map[string]domain.TurnRecord
	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		matches: make(map[string]domain.MatchRecord),
		version: make(map[string]int),
		turns:   make(map[string]domain.TurnRecord),
	}
}

func (m *memStore) CreateMatch(ctx context.Context, record domain.MatchRecord) error {
	if _, ok := m.matches[record.MatchID]; ok {
		return ports.ErrVersionConflict
	}
	m.matches[record.MatchID] = record
	m.version[record.MatchID] = 1
	return nil
}

func (m *memStore) ReadMatch(ctx context.Context, matchID string) (domain.MatchRecord, string, error) {
	record, ok := m.matches[matchID]
	if !ok {
		return domain.MatchRecord{}, "", ports.ErrNotFound
	}
	record.Players = append([]string(nil), record.Players...)
	return record, strconv.Itoa(m.version[matchID]), nil
}

func (m *memStore) WriteMatch(ctx context.Context, record domain.MatchRecord, version string) (string, error) {
	if strconv.Itoa(m.version[record.MatchID]) != version {
		return "", ports.ErrVersionConflict
	}
	m.matches[record.MatchID] = record
	m.version[record.MatchID]++
	return strconv.Itoa(m.version[record.MatchID]), nil
}

func (m *memStore) WriteTurn(ctx context.Context, record domain.MatchRecord, version string, turn domain.TurnRecord) (string, error) {
	newVersion, err := m.WriteMatch(ctx, record, version)
	if err != nil {
		return "", err
	}
	m.turns[fmt.Sprintf("%s:%d", turn.MatchID, turn.Turn)] = turn
	return newVersion, nil
}

func (m *memStore) ReadTurns(ctx context.Context, matchID string, from, to int64) ([]domain.TurnRecord, error) {
	turns := []domain.TurnRecord{}
	for i := from; i <= to; i++ {
		if turn, ok := m.turns[fmt.Sprintf("%s:%d", matchID, i)]; ok {
			turns = append(turns, turn)
		}
	}
	return turns, nil
}

func (m *memStore) ListMatches(ctx context.Context, limit int, cursor string) ([]domain.MatchRecord, string, error) {
	if m.listErr != nil {
		return nil, "", m.listErr
	}
	records := []domain.MatchRecord{}
	for _, record := range m.matches {
		records = append(records, record)
	}
	return records, "", nil
}

type memHost struct {
	spawned   int
	signals   int
	signalErr error
}

func (m *memHost) Spawn(ctx context.Context, size int, creator string) (string, error) {
	m.spawned++
	return fmt.Sprintf("m%d", m.spawned), nil
}

func (m *memHost) SignalSettings(ctx context.Context, matchID string, update domain.SettingsUpdate) error {
	if m.signalErr != nil {
		return m.signalErr
	}
	m.signals++
	return nil
}

func (m *memHost) ListOpen(ctx context.Context, limit int) ([]ports.LiveMatch, error) {
	return []ports.LiveMatch{{MatchID: "m1", Size: 4, Players: 2, Started: true}}, nil
}

func newRPCService() (*app.Service, *memStore, *memHost) {
	store := newMemStore()
	host := &memHost{}
	now := func() time.Time { return time.Unix(1700000000, 0) }
	return app.NewService(store, host, now), store, host
}

func decode(t *testing.T, payload string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, payload)
	}
	return out
}

func TestHandleCreateMatch_MalformedPayloadFallsBack(t *testing.T) {
	svc, _, _ := newRPCService()

	out, err := handleCreateMatch(context.Background(), noopLogger{}, svc, "A", "{not json")
	if err != nil {
		t.Fatalf("handleCreateMatch failed: %v", err)
	}

	resp := decode(t, out)
	if resp["match_id"] != "m1" || resp["size"] != float64(2) {
		t.Fatalf("response = %s", out)
	}
}

func TestHandleJoinMatch_ResponseShape(t *testing.T) {
	svc, _, _ := newRPCService()
	created, _ := svc.CreateMatch(context.Background(), "A", 2)

	out, err := handleJoinMatch(context.Background(), noopLogger{}, svc, "A", fmt.Sprintf(`{"match_id":%q}`, created.MatchID))
	if err != nil {
		t.Fatalf("handleJoinMatch failed: %v", err)
	}

	resp := decode(t, out)
	if resp["ok"] != true || resp["match_id"] != created.MatchID || resp["joined"] != true {
		t.Fatalf("response = %s", out)
	}
	if players := resp["players"].([]interface{}); len(players) != 1 || players[0] != "A" {
		t.Fatalf("players = %v", resp["players"])
	}
}

func TestHandleJoinMatch_FullMatchFailsLoudly(t *testing.T) {
	svc, _, _ := newRPCService()
	created, _ := svc.CreateMatch(context.Background(), "A", 1)
	if _, err := svc.JoinMatch(context.Background(), "A", created.MatchID); err != nil {
		t.Fatalf("seed join failed: %v", err)
	}

	_, err := handleJoinMatch(context.Background(), noopLogger{}, svc, "B", fmt.Sprintf(`{"match_id":%q}`, created.MatchID))
	if err == nil {
		t.Fatalf("expected a typed failure for a full match")
	}
	if err.Error() != "match_full" {
		t.Fatalf("error = %q, want match_full", err.Error())
	}
}

func TestHandleSubmitTurn(t *testing.T) {
	svc, store, _ := newRPCService()
	created, _ := svc.CreateMatch(context.Background(), "A", 2)

	out, err := handleSubmitTurn(context.Background(), noopLogger{}, svc, "A", fmt.Sprintf(`{"match_id":%q,"move":{"cell":4}}`, created.MatchID))
	if err != nil {
		t.Fatalf("handleSubmitTurn failed: %v", err)
	}

	resp := decode(t, out)
	if resp["ok"] != true || resp["turn"] != float64(1) {
		t.Fatalf("response = %s", out)
	}

	turn := store.turns[created.MatchID+":1"]
	if string(turn.Move) != `{"cell":4}` {
		t.Fatalf("stored move = %s, want opaque passthrough", turn.Move)
	}
}

func TestHandleGetState_SoftErrors(t *testing.T) {
	svc, _, _ := newRPCService()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "bad json", payload: "{not json", want: "bad_json"},
		{name: "missing match id", payload: "{}", want: "match_id_required"},
		{name: "unknown match", payload: `{"match_id":"nope"}`, want: "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := handleGetState(context.Background(), noopLogger{}, svc, tt.payload)
			if err != nil {
				t.Fatalf("get_state must not fail hard: %v", err)
			}
			if resp := decode(t, out); resp["error"] != tt.want {
				t.Fatalf("response = %s, want error %q", out, tt.want)
			}
		})
	}
}

func TestHandleGetState_Success(t *testing.T) {
	svc, _, _ := newRPCService()
	created, _ := svc.CreateMatch(context.Background(), "A", 2)
	_, _ = svc.SubmitTurn(context.Background(), "A", created.MatchID, json.RawMessage(`"x"`))

	out, err := handleGetState(context.Background(), noopLogger{}, svc, fmt.Sprintf(`{"match_id":%q}`, created.MatchID))
	if err != nil {
		t.Fatalf("handleGetState failed: %v", err)
	}

	resp := decode(t, out)
	match := resp["match"].(map[string]interface{})
	if match["current_turn"] != float64(1) {
		t.Fatalf("match = %v", match)
	}
	if turns := resp["turns"].([]interface{}); len(turns) != 1 {
		t.Fatalf("turns = %v", resp["turns"])
	}
}

func TestHandleUpdateSettings_ClampsAndSwallowsSignalFailure(t *testing.T) {
	svc, store, host := newRPCService()
	host.signalErr = errors.New("no live instance")
	created, _ := svc.CreateMatch(context.Background(), "A", 2)

	payload := fmt.Sprintf(`{"match_id":%q,"settings":{"players":5000,"rows":3}}`, created.MatchID)
	out, err := handleUpdateSettings(context.Background(), noopLogger{}, svc, "A", payload)
	if err != nil {
		t.Fatalf("signal failure must not surface: %v", err)
	}

	resp := decode(t, out)
	if resp["ok"] != true || resp["size"] != float64(100) || resp["rows"] != float64(3) {
		t.Fatalf("response = %s", out)
	}
	if store.matches[created.MatchID].Size != 100 {
		t.Fatalf("durable write must still commit")
	}
}

func TestHandleUpdateSettings_NonCreatorDenied(t *testing.T) {
	svc, _, _ := newRPCService()
	created, _ := svc.CreateMatch(context.Background(), "A", 2)

	_, err := handleUpdateSettings(context.Background(), noopLogger{}, svc, "B", fmt.Sprintf(`{"match_id":%q,"settings":{"cols":5}}`, created.MatchID))
	if err == nil || err.Error() != "not_creator" {
		t.Fatalf("error = %v, want not_creator", err)
	}
}

func TestHandleListMyMatches_NeverThrows(t *testing.T) {
	svc, store, _ := newRPCService()
	store.listErr = errors.New("storage down")

	out, err := handleListMyMatches(context.Background(), noopLogger{}, svc, "U")
	if err != nil {
		t.Fatalf("list_my_matches must not fail hard: %v", err)
	}

	resp := decode(t, out)
	if resp["ok"] != false || resp["error"] != "storage_error" {
		t.Fatalf("response = %s", out)
	}
}

func TestHandleListOpenMatches(t *testing.T) {
	svc, _, _ := newRPCService()

	out, err := handleListOpenMatches(context.Background(), noopLogger{}, svc, "")
	if err != nil {
		t.Fatalf("handleListOpenMatches failed: %v", err)
	}

	resp := decode(t, out)
	if resp["ok"] != true {
		t.Fatalf("response = %s", out)
	}
	matches := resp["matches"].([]interface{})
	if len(matches) != 1 {
		t.Fatalf("matches = %v", matches)
	}
	entry := matches[0].(map[string]interface{})
	if entry["match_id"] != "m1" || entry["players"] != float64(2) || entry["started"] != true {
		t.Fatalf("entry = %v", entry)
	}
}
