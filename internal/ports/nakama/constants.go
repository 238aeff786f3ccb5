package nakama

const (
	// RPC ids exposed to clients.
	RpcCreateMatch     = "create_match"
	RpcJoinMatch       = "join_match"
	RpcLeaveMatch      = "leave_match"
	RpcSubmitTurn      = "submit_turn"
	RpcGetState        = "get_state"
	RpcUpdateSettings  = "update_settings"
	RpcListMyMatches   = "list_my_matches"
	RpcListOpenMatches = "list_open_matches"

	// MatchNameTurnbase is the authoritative match handler name registered
	// with Nakama.
	MatchNameTurnbase = "turnbase_match"

	// Storage collections. Match records are keyed by match id; turn records
	// by "<match id>:<turn>".
	CollectionMatches = "matches"
	CollectionTurns   = "match_turns"

	// LabelMode tags the labels published by this module's match instances
	// so discovery queries can filter on them.
	LabelMode = "turnbase"

	matchConfigPath = "data/match_config.json"
)

// Op codes for server events.
const (
	// OpSettingsUpdate carries a {size, cols, rows, started} snapshot,
	// either to newly joined presences or to the whole match.
	OpSettingsUpdate int64 = 101
)

// SignalUpdateSettings tags the reconciliation payload the gateway pushes
// into a live match instance after a durable settings write.
const SignalUpdateSettings = "update_settings"
