package admin

import (
	"net/http"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/monitor"
	"github.com/nixlim/mailwatch/internal/storage"
)

// QuotaResponse is the body of GET /api/quota.
type QuotaResponse struct {
	Used       int  `json:"used"`
	Limit      int  `json:"limit"`
	Percentage int  `json:"percentage"`
	NearLimit  bool `json:"nearLimit"`
	Unlimited  bool `json:"unlimited"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Days      int                     `json:"days"`
	Summaries []monitor.EpochSummary  `json:"summaries"`
	Daily     []storage.DailyActivity `json:"daily"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evts := s.mon.RecentEvents(limit)
	if evts == nil {
		evts = []monitor.Event{}
	}
	writeJSON(w, http.StatusOK, evts)
}

func (s *Server) handleErrors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.ErrorSummary())
}

func (s *Server) handleQuota(w http.ResponseWriter, _ *http.Request) {
	st := s.mon.Stats()
	writeJSON(w, http.StatusOK, QuotaResponse{
		Used:       st.QuotaUsed,
		Limit:      st.QuotaLimit,
		Percentage: s.mon.QuotaUsagePercentage(),
		NearLimit:  s.mon.IsQuotaNearLimit(monitor.DefaultQuotaThreshold),
		Unlimited:  st.QuotaLimit == 0,
	})
}

// handleHealth answers 503 when the verdict is critical.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.mon.HealthStatus()
	status := http.StatusOK
	if h.Status == monitor.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	days, err := intParam(r, "days", defaultHistoryDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	resp := HistoryResponse{
		Days:      days,
		Summaries: s.history.QuerySummaries(days),
		Daily:     s.history.QueryDailyActivity(days),
	}
	if resp.Summaries == nil {
		resp.Summaries = []monitor.EpochSummary{}
	}
	if resp.Daily == nil {
		resp.Daily = []storage.DailyActivity{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	limit, err := intParam(r, "limit", defaultAlertLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list := s.history.RecentAlerts(limit)
	if list == nil {
		list = []alerts.Alert{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.mon.ForceReset()
	s.log.Info().Msg("statistics reset from admin API")
	writeJSON(w, http.StatusOK, s.mon.Stats())
}
