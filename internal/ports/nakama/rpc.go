package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"turnbase/internal/app"
	"turnbase/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Wire shapes for the gateway RPCs. Field names are part of the client
// contract and must not change.

type createMatchRequest struct {
	Size int `json:"size"`
}

type createMatchResponse struct {
	MatchID string `json:"match_id"`
	Size    int    `json:"size"`
}

type matchIDRequest struct {
	MatchID string `json:"match_id"`
}

type joinMatchResponse struct {
	OK      bool     `json:"ok"`
	MatchID string   `json:"match_id"`
	Size    int      `json:"size"`
	Players []string `json:"players"`
	Joined  bool     `json:"joined"`
}

type leaveMatchResponse struct {
	OK      bool     `json:"ok"`
	MatchID string   `json:"match_id"`
	Players []string `json:"players"`
	Left    bool     `json:"left"`
}

type submitTurnRequest struct {
	MatchID string          `json:"match_id"`
	Move    json.RawMessage `json:"move"`
}

type submitTurnResponse struct {
	OK   bool  `json:"ok"`
	Turn int64 `json:"turn"`
}

type getStateResponse struct {
	Match domain.MatchRecord  `json:"match"`
	Turns []domain.TurnRecord `json:"turns"`
}

// softError is the tolerant failure shape used by read-only handlers.
type softError struct {
	Error string `json:"error"`
}

type settingsFields struct {
	Players *int `json:"players"`
	Cols    *int `json:"cols"`
	Rows    *int `json:"rows"`
}

type updateSettingsRequest struct {
	MatchID  string         `json:"match_id"`
	Settings settingsFields `json:"settings"`
}

type updateSettingsResponse struct {
	OK      bool   `json:"ok"`
	MatchID string `json:"match_id"`
	Size    int    `json:"size"`
	Cols    int    `json:"cols,omitempty"`
	Rows    int    `json:"rows,omitempty"`
}

type listMatchesResponse struct {
	OK      bool                 `json:"ok"`
	Matches []domain.MatchRecord `json:"matches"`
}

type listMatchesFailure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type liveMatchEntry struct {
	MatchID string `json:"match_id"`
	Size    int    `json:"size"`
	Players int    `json:"players"`
	Started bool   `json:"started"`
}

type listOpenMatchesRequest struct {
	Limit int `json:"limit"`
}

type listOpenMatchesResponse struct {
	OK      bool             `json:"ok"`
	Matches []liveMatchEntry `json:"matches"`
}

const defaultOpenMatchLimit = 20

// RegisterRPCs registers the gateway RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	handlers := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateMatch:     rpcCreateMatch,
		RpcJoinMatch:       rpcJoinMatch,
		RpcLeaveMatch:      rpcLeaveMatch,
		RpcSubmitTurn:      rpcSubmitTurn,
		RpcGetState:        rpcGetState,
		RpcUpdateSettings:  rpcUpdateSettings,
		RpcListMyMatches:   rpcListMyMatches,
		RpcListOpenMatches: rpcListOpenMatches,
	}
	for id, fn := range handlers {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

// serviceFromRuntime builds the gateway service over the runtime adapters.
// The service is stateless, so per-call construction is fine.
func serviceFromRuntime(nk runtime.NakamaModule) *app.Service {
	return app.NewService(NewNakamaStoreAdapter(nk), NewNakamaMatchHostAdapter(nk), nil)
}

// callerID returns the authenticated caller id supplied by the runtime. It
// is trusted as-is; this module never re-verifies identity.
func callerID(ctx context.Context) string {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	return userID
}

func rpcCreateMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleCreateMatch(ctx, logger, serviceFromRuntime(nk), callerID(ctx), payload)
}

func rpcJoinMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleJoinMatch(ctx, logger, serviceFromRuntime(nk), callerID(ctx), payload)
}

func rpcLeaveMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleLeaveMatch(ctx, logger, serviceFromRuntime(nk), callerID(ctx), payload)
}

func rpcSubmitTurn(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleSubmitTurn(ctx, logger, serviceFromRuntime(nk), callerID(ctx), payload)
}

func rpcGetState(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleGetState(ctx, logger, serviceFromRuntime(nk), payload)
}

func rpcUpdateSettings(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleUpdateSettings(ctx, logger, serviceFromRuntime(nk), callerID(ctx), payload)
}

func rpcListMyMatches(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleListMyMatches(ctx, logger, serviceFromRuntime(nk), callerID(ctx))
}

func rpcListOpenMatches(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return handleListOpenMatches(ctx, logger, serviceFromRuntime(nk), payload)
}

// handleCreateMatch validates loosely: a malformed payload falls back to the
// default size rather than failing.
func handleCreateMatch(ctx context.Context, logger runtime.Logger, svc *app.Service, caller, payload string) (string, error) {
	var req createMatchRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Debug("create_match: Malformed payload, using defaults: %v", err)
			req = createMatchRequest{}
		}
	}

	res, err := svc.CreateMatch(ctx, caller, req.Size)
	if err != nil {
		return "", toRuntimeError(logger, err)
	}

	return marshalResponse(createMatchResponse{MatchID: res.MatchID, Size: res.Size})
}

func handleJoinMatch(ctx context.Context, logger runtime.Logger, svc *app.Service, caller, payload string) (string, error) {
	var req matchIDRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", errBadJSON
	}

	res, err := svc.JoinMatch(ctx, caller, req.MatchID)
	if err != nil {
		return "", toRuntimeError(logger, err)
	}

	return marshalResponse(joinMatchResponse{
		OK:      true,
		MatchID: res.MatchID,
		Size:    res.Size,
		Players: res.Players,
		Joined:  res.Joined,
	})
}

func handleLeaveMatch(ctx context.Context, logger runtime.Logger, svc *app.Service, caller, payload string) (string, error) {
	var req matchIDRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", errBadJSON
	}

	res, err := svc.LeaveMatch(ctx, caller, req.MatchID)
	if err != nil {
		return "", toRuntimeError(logger, err)
	}

	return marshalResponse(leaveMatchResponse{
		OK:      true,
		MatchID: res.MatchID,
		Players: res.Players,
		Left:    res.Left,
	})
}

func handleSubmitTurn(ctx context.Context, logger runtime.Logger, svc *app.Service, caller, payload string) (string, error) {
	var req submitTurnRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", errBadJSON
	}

	res, err := svc.SubmitTurn(ctx, caller, req.MatchID, req.Move)
	if err != nil {
		return "", toRuntimeError(logger, err)
	}

	return marshalResponse(submitTurnResponse{OK: true, Turn: res.Turn})
}

// handleGetState degrades gracefully: absence and bad input produce a soft
// error object, never a thrown failure. Store faults still fail hard.
func handleGetState(ctx context.Context, logger runtime.Logger, svc *app.Service, payload string) (string, error) {
	var req matchIDRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return marshalResponse(softError{Error: "bad_json"})
	}

	res, err := svc.GetState(ctx, req.MatchID)
	if err != nil {
		var appErr *app.Error
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case app.CodeInvalidArgument:
				return marshalResponse(softError{Error: "match_id_required"})
			case app.CodeNotFound:
				return marshalResponse(softError{Error: "not_found"})
			}
		}
		return "", toRuntimeError(logger, err)
	}

	return marshalResponse(getStateResponse{Match: res.Match, Turns: res.Turns})
}

func handleUpdateSettings(ctx context.Context, logger runtime.Logger, svc *app.Service, caller, payload string) (string, error) {
	var req updateSettingsRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", errBadJSON
	}

	update := domain.SettingsUpdate{
		Size: req.Settings.Players,
		Cols: req.Settings.Cols,
		Rows: req.Settings.Rows,
	}

	res, err := svc.UpdateSettings(ctx, caller, req.MatchID, update)
	if err != nil {
		return "", toRuntimeError(logger, err)
	}

	// The durable write above is the authoritative outcome. The live signal
	// only shortens the window during which connected clients see stale
	// settings, so its failure is logged and deliberately discarded.
	if sigErr := svc.NotifySettings(ctx, req.MatchID, update); sigErr != nil {
		logger.Warn("update_settings: Live signal dropped for match %s: %v", req.MatchID, sigErr)
	}

	return marshalResponse(updateSettingsResponse{
		OK:      true,
		MatchID: res.MatchID,
		Size:    res.Size,
		Cols:    res.Cols,
		Rows:    res.Rows,
	})
}

// handleListMyMatches never throws; any store failure is reported in-band.
func handleListMyMatches(ctx context.Context, logger runtime.Logger, svc *app.Service, caller string) (string, error) {
	matches, err := svc.ListMyMatches(ctx, caller)
	if err != nil {
		logger.Error("list_my_matches: %v", err)
		return marshalResponse(listMatchesFailure{OK: false, Error: "storage_error"})
	}
	return marshalResponse(listMatchesResponse{OK: true, Matches: matches})
}

func handleListOpenMatches(ctx context.Context, logger runtime.Logger, svc *app.Service, payload string) (string, error) {
	var req listOpenMatchesRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", errBadJSON
		}
	}
	if req.Limit <= 0 {
		req.Limit = defaultOpenMatchLimit
	}

	live, err := svc.ListOpenMatches(ctx, req.Limit)
	if err != nil {
		return "", toRuntimeError(logger, err)
	}

	entries := make([]liveMatchEntry, 0, len(live))
	for _, m := range live {
		entries = append(entries, liveMatchEntry{
			MatchID: m.MatchID,
			Size:    m.Size,
			Players: m.Players,
			Started: m.Started,
		})
	}
	return marshalResponse(listOpenMatchesResponse{OK: true, Matches: entries})
}

func marshalResponse(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to marshal response", grpcInternal)
	}
	return string(data), nil
}

// gRPC status codes used by the runtime error contract.
const (
	grpcInvalidArgument    = 3
	grpcNotFound           = 5
	grpcPermissionDenied   = 7
	grpcFailedPrecondition = 9
	grpcAborted            = 10
	grpcInternal           = 13
)

var errBadJSON = runtime.NewError("bad_json", grpcInvalidArgument)

// toRuntimeError converts the gateway's typed failure into the runtime's
// error contract. Internal causes are logged here and not leaked to clients.
func toRuntimeError(logger runtime.Logger, err error) error {
	var appErr *app.Error
	if !errors.As(err, &appErr) {
		logger.Error("unclassified handler error: %v", err)
		return runtime.NewError("internal server error", grpcInternal)
	}

	switch appErr.Code {
	case app.CodeInvalidArgument:
		return runtime.NewError(appErr.Reason, grpcInvalidArgument)
	case app.CodeNotFound:
		return runtime.NewError(appErr.Reason, grpcNotFound)
	case app.CodePermissionDenied:
		return runtime.NewError(appErr.Reason, grpcPermissionDenied)
	case app.CodeFailedPrecondition:
		return runtime.NewError(appErr.Reason, grpcFailedPrecondition)
	case app.CodeConflict:
		return runtime.NewError(appErr.Reason, grpcAborted)
	default:
		logger.Error("internal handler error: %v", appErr)
		return runtime.NewError("internal server error", grpcInternal)
	}
}
