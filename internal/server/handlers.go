package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"DrawdownSentinel/internal/advisor"
	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/settings"
	"DrawdownSentinel/internal/store"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("store ping")
		status, code = "degraded", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{
		"status":  status,
		"service": "drawdown-sentinel",
	})
}

// handleMarket serves /api/market?ticker=SPY,QQQ.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	symbols := s.symbols
	if raw := r.URL.Query().Get("ticker"); raw != "" {
		symbols = nil
		for _, t := range strings.Split(raw, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				symbols = append(symbols, t)
			}
		}
	}
	if len(symbols) == 0 {
		s.writeError(w, http.StatusBadRequest, "no tickers requested")
		return
	}
	s.writeJSON(w, http.StatusOK, s.market.Report(r.Context(), symbols))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.advisor.Settings(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in model.Settings
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.store.SaveSettings(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGetAmmo(w http.ResponseWriter, r *http.Request) {
	a, err := s.ammo.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResetAmmo(w http.ResponseWriter, r *http.Request) {
	a, err := s.ammo.Reset(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req advisor.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.advisor.Preview(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveUpdate(w http.ResponseWriter, r *http.Request) {
	var req advisor.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.advisor.Save(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.ListSnapshots(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetContribution(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetContribution(r.Context(), chi.URLParam(r, "snapshotID"))
	if err == nil && c.UserID != chi.URLParam(r, "userID") {
		err = store.ErrNotFound
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := s.store.ListRecommendations(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleListMarketStates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	states, err := s.store.ListMarketStates(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, states)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

// writeFailure maps domain errors to status codes.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrInvalid):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, advisor.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("encode json response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
