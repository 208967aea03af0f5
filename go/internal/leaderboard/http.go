package leaderboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxSubmitBody = 16 << 10

// RegisterRoutes mounts the REST endpoints on mux.
func RegisterRoutes(mux *http.ServeMux, app *App) {
	mux.HandleFunc("POST /api/typing-stats", func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rec, err := app.Submit(r.Context(), req)
		switch {
		case errors.Is(err, ErrInvalidStats):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			log.Error().Err(err).Str("player_id", req.PlayerID).Msg("failed to submit typing stats")
			writeError(w, http.StatusInternalServerError, "failed to store stats")
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	})

	mux.HandleFunc("GET /api/typing-stats", func(w http.ResponseWriter, r *http.Request) {
		ranked, err := app.List(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list typing stats")
			writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
			return
		}
		if ranked == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, ranked)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
