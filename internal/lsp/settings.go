package lsp

import (
	"encoding/json"
	"log/slog"
	"time"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	return nil
}

// applySettings reads the "forgelsp" section. Fields that are absent keep
// their current value.
func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.log.Debug("ignoring malformed settings", slog.String("error", err.Error()))
		return
	}
	cfg := settings.Forge
	if cfg.Trace != nil {
		s.mu.Lock()
		s.traceLSP = *cfg.Trace
		s.mu.Unlock()
		s.docs.SetTrace(*cfg.Trace)
	}
	if cfg.Lint != nil {
		s.runner.DisableLint(!*cfg.Lint)
		s.logf("lint setting", slog.Bool("enabled", *cfg.Lint))
	}
	if cfg.DebounceMs != nil && *cfg.DebounceMs > 0 {
		s.docs.SetDebounce(time.Duration(*cfg.DebounceMs) * time.Millisecond)
		s.logf("debounce setting", slog.Int("ms", *cfg.DebounceMs))
	}
}
