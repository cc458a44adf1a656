package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"goldchecker/internal/backend"
	"goldchecker/internal/service"
)

type syncData struct {
	Prices          backend.IngestRequest `json:"prices"`
	DCOGDate        string                `json:"dcogDate"`
	BackendResponse json.RawMessage       `json:"backendResponse"`
}

type syncView struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Data     *syncData `json:"data,omitempty"`
	Error    string    `json:"error,omitempty"`
	SyncedAt string    `json:"syncedAt"`
}

type syncStatusView struct {
	Success       bool               `json:"success"`
	CurrentPrices *currentPricesView `json:"currentPrices,omitempty"`
	BackendURL    string             `json:"backendUrl,omitempty"`
	CheckedAt     string             `json:"checkedAt,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// handleSync handles GET (status) and POST (sync) on /api/gold-prices/sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	noStore(w)

	if r.Method == http.MethodGet {
		s.handleSyncStatus(w, r)
		return
	}

	if s.opts.SyncAPIKey != "" && !secretEqual(r.Header.Get("X-API-Key"), s.opts.SyncAPIKey) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.runSync(w, r, service.TriggerManual, "Gold prices synced successfully")
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.rates.CheckSync(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("sync status check failed")
		WriteJSON(w, http.StatusInternalServerError, syncStatusView{Error: err.Error()})
		return
	}
	current := newCurrentPricesView(snap)
	WriteJSON(w, http.StatusOK, syncStatusView{
		Success:       true,
		CurrentPrices: &current,
		BackendURL:    s.opts.BackendURL,
		CheckedAt:     timestamp(s.opts.Now()),
	})
}

// handleCronSync handles GET and POST on /api/cron/sync-gold-prices.
func (s *Server) handleCronSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	noStore(w)

	if s.opts.CronSecret != "" && !secretEqual(bearerToken(r), s.opts.CronSecret) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.runSync(w, r, service.TriggerCron, "Daily gold price sync completed")
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, trigger, message string) {
	res, err := s.rates.Sync(r.Context(), trigger)
	if err != nil {
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("sync failed")
		WriteJSON(w, http.StatusInternalServerError, syncView{Error: err.Error(), SyncedAt: timestamp(s.opts.Now())})
		return
	}

	resp := res.Response
	if len(resp) == 0 {
		resp = json.RawMessage("null")
	}
	WriteJSON(w, http.StatusOK, syncView{
		Success: true,
		Message: message,
		Data: &syncData{
			Prices:          res.Request,
			DCOGDate:        res.Snapshot.BusinessDate,
			BackendResponse: resp,
		},
		SyncedAt: timestamp(res.SyncedAt),
	})
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
