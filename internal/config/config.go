package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MatchConfig holds operational knobs for the coordination module. All fields
// have safe defaults so the module works without a config file.
type MatchConfig struct {
	// TickRate is the match loop cadence in ticks per second. Asynchronous
	// play needs no simulation cadence, so the default is the minimum.
	TickRate int `json:"tick_rate"`
	// TurnHistoryWindow is how many trailing turns get_state returns.
	TurnHistoryWindow int `json:"turn_history_window"`
	// DefaultCapacity is the match size used when create_match gets no
	// usable size.
	DefaultCapacity int `json:"default_capacity"`
}

var (
	cfg      *MatchConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadMatchConfig loads the match configuration from the given path.
func LoadMatchConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read match config: %w", err)
			return
		}

		var c MatchConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal match config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetTickRate returns the configured tick rate, defaulting to 1.
func GetTickRate() int {
	if cfg == nil || cfg.TickRate <= 0 {
		return 1
	}
	return cfg.TickRate
}

// GetTurnHistoryWindow returns the configured turn window, defaulting to 50.
func GetTurnHistoryWindow() int {
	if cfg == nil || cfg.TurnHistoryWindow <= 0 {
		return 50
	}
	return cfg.TurnHistoryWindow
}

// GetDefaultCapacity returns the configured default match size, defaulting
// to 2.
func GetDefaultCapacity() int {
	if cfg == nil || cfg.DefaultCapacity <= 0 {
		return 2
	}
	return cfg.DefaultCapacity
}
