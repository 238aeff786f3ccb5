package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"turnbase/internal/config"
	"turnbase/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// MatchState holds the ephemeral state for one live match instance. The
// durable store stays the source of truth; this is a cache and fan-out layer
// for the currently connected subset of participants. If the instance is
// lost, reconstruction happens only from the store.
type MatchState struct {
	Presences   map[string]runtime.Presence `json:"-"` // userId -> live connection
	Order       []string                    `json:"order"`
	Size        int                         `json:"size"`
	Cols        int                         `json:"cols"`
	Rows        int                         `json:"rows"`
	CurrentTurn int64                       `json:"current_turn"` // mirrored for label/metadata only
	Started     bool                        `json:"started"`      // set once at 2+ members, never reverts
	Creator     string                      `json:"creator"`
}

func (ms *MatchState) memberCount() int {
	return len(ms.Presences)
}

// Label is the discovery snapshot advertised for a live match instance.
type Label struct {
	Mode    string `json:"mode"`
	Size    int    `json:"size"`
	Players int    `json:"players"`
	Started bool   `json:"started"`
	Creator string `json:"creator,omitempty"`
	Open    bool   `json:"open"`
}

// settingsEvent is the payload broadcast on OpSettingsUpdate.
type settingsEvent struct {
	Size    int  `json:"size"`
	Cols    int  `json:"cols"`
	Rows    int  `json:"rows"`
	Started bool `json:"started"`
}

type matchHandler struct{}

func newMatchHandler() *matchHandler {
	return &matchHandler{}
}

var _ runtime.Match = (*matchHandler)(nil)

// MatchInit is called when the match instance is created. The requested
// capacity is clamped to the live-play bounds, which are stricter than the
// durable settings bounds.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	if err := config.LoadMatchConfig(matchConfigPath); err != nil {
		logger.Warn("MatchInit: Could not load match config: %v", err)
	}

	state := &MatchState{
		Presences: make(map[string]runtime.Presence),
		Size:      domain.ClampLiveCapacity(paramInt(params, "size")),
		Creator:   paramString(params, "creator"),
	}

	labelBytes, err := json.Marshal(buildLabel(state))
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	// Asynchronous play needs no simulation cadence; the loop only exists as
	// a message hook.
	return state, config.GetTickRate(), string(labelBytes)
}

// MatchJoinAttempt is the pure live-capacity check, run before a connection
// is admitted. Durable membership is governed separately by the join_match
// handler; the two views may diverge and that divergence is tolerated.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	s, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	cost := 1
	if _, present := s.Presences[presence.GetUserId()]; present {
		cost = 0
	}
	if s.memberCount()+cost > s.Size {
		return state, false, "match_full"
	}
	return state, true, ""
}

// MatchJoin admits presences, flips started at two members, republishes the
// label, and sends the settings snapshot to the new joiners only.
func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	s, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	var joined []runtime.Presence
	for _, p := range presences {
		uid := p.GetUserId()
		if _, present := s.Presences[uid]; present {
			// Rejoin updates the connection handle.
			s.Presences[uid] = p
			continue
		}
		s.Presences[uid] = p
		s.Order = append(s.Order, uid)
		joined = append(joined, p)
	}

	if !s.Started && s.memberCount() >= 2 {
		s.Started = true
	}

	mh.updateLabel(s, dispatcher, logger)

	// New joiners get the current snapshot directly so their view is
	// consistent without a separate fetch.
	if len(joined) > 0 {
		mh.sendSettings(s, dispatcher, logger, joined)
	}

	return s
}

// MatchLeave removes presences and disposes the instance once empty.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	s, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		uid := p.GetUserId()
		delete(s.Presences, uid)
		for i, id := range s.Order {
			if id == uid {
				s.Order = append(s.Order[:i], s.Order[i+1:]...)
				break
			}
		}
	}

	if s.memberCount() == 0 {
		logger.Debug("MatchLeave: Last participant left, disposing instance.")
		return nil
	}

	mh.updateLabel(s, dispatcher, logger)
	return s
}

// MatchLoop has no per-tick work. Incoming realtime messages are accepted
// but not interpreted by this subsystem; the hook stays in place for them.
func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	s, ok := state.(*MatchState)
	if !ok {
		return state
	}

	for _, msg := range messages {
		logger.Debug("MatchLoop: Ignoring message with opcode %d from %s", msg.GetOpCode(), msg.GetUserId())
	}

	return s
}

// MatchSignal is the reconciliation entry point invoked by the gateway after
// a durable settings write. Malformed payloads are logged and ignored.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	s, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}

	var sig settingsSignal
	if err := json.Unmarshal([]byte(data), &sig); err != nil {
		logger.Warn("MatchSignal: Malformed payload: %v", err)
		return s, ""
	}
	if sig.Type != SignalUpdateSettings {
		logger.Warn("MatchSignal: Unknown signal type %q", sig.Type)
		return s, ""
	}

	if sig.Size != nil {
		s.Size = domain.ClampSetting(*sig.Size)
	}
	if sig.Cols != nil {
		s.Cols = domain.ClampSetting(*sig.Cols)
	}
	if sig.Rows != nil {
		s.Rows = domain.ClampSetting(*sig.Rows)
	}

	mh.updateLabel(s, dispatcher, logger)

	// Unlike join, a settings change goes to every connected participant.
	mh.sendSettings(s, dispatcher, logger, nil)

	return s, ""
}

// MatchTerminate lets in-flight sends flush; no further cleanup is needed.
func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Instance terminating with %d seconds grace.", graceSeconds)
	return state
}

func buildLabel(s *MatchState) Label {
	return Label{
		Mode:    LabelMode,
		Size:    s.Size,
		Players: s.memberCount(),
		Started: s.Started,
		Creator: s.Creator,
		Open:    s.memberCount() < s.Size,
	}
}

// updateLabel republishes the discovery label. Failures are logged and
// ignored; the label is advisory metadata.
func (mh *matchHandler) updateLabel(s *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	labelBytes, err := json.Marshal(buildLabel(s))
	if err != nil {
		logger.Error("updateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("updateLabel: Failed to update: %v", err)
	}
}

// sendSettings broadcasts the current settings snapshot. A nil recipients
// slice targets every connected presence.
func (mh *matchHandler) sendSettings(s *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, recipients []runtime.Presence) {
	payload, err := json.Marshal(settingsEvent{
		Size:    s.Size,
		Cols:    s.Cols,
		Rows:    s.Rows,
		Started: s.Started,
	})
	if err != nil {
		logger.Error("sendSettings: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpSettingsUpdate, payload, recipients, nil, true); err != nil {
		logger.Error("sendSettings: Broadcast failed: %v", err)
	}
}

// paramInt reads an int match-creation parameter, tolerating the numeric
// types a params map can carry.
func paramInt(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func paramString(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}
