package api

import (
	"net/http"
)

func outboxStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusNotFound, "outbox is disabled", "OUTBOX_DISABLED")
			return
		}
		writeOutboxStatus(w, r, cfg)
	}
}

func pauseOutboxHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusNotFound, "outbox is disabled", "OUTBOX_DISABLED")
			return
		}
		cfg.Runner.Pause()
		writeOutboxStatus(w, r, cfg)
	}
}

func resumeOutboxHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusNotFound, "outbox is disabled", "OUTBOX_DISABLED")
			return
		}
		cfg.Runner.Resume()
		writeOutboxStatus(w, r, cfg)
	}
}

func writeOutboxStatus(w http.ResponseWriter, r *http.Request, cfg ServerConfig) {
	resp := OutboxStatusResponse{
		Running: cfg.Runner.IsRunning(),
		Paused:  cfg.Runner.IsPaused(),
	}
	if cfg.Outbox != nil {
		stats, err := cfg.Outbox.Stats(r.Context())
		if err != nil {
			cfg.Logger.Error("failed to read outbox stats", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read outbox", "INTERNAL_ERROR")
			return
		}
		resp.Stats = &stats
	}
	WriteJSON(w, http.StatusOK, resp)
}
