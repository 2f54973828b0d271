package handlers

import (
	"context"
	"net/http"

	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/iprange"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/session"
)

//go:generate mockgen -destination=mocks/mock_session.go -package=mocks github.com/anstrom/netscope/internal/api/handlers SessionService,MonitorService

// SessionService is the part of the session controller exposed over HTTP.
type SessionService interface {
	Status() session.Status
	Hosts(term string) []hosts.Record
	History(ctx context.Context) ([]history.Entry, error)
	RequestScan(ctx context.Context, startRaw, endRaw string) (iprange.Range, error)
	RescanFromHistory(ctx context.Context, entry history.Entry) (iprange.Range, error)
}

// MonitorService drives the monitoring lifecycle.
type MonitorService interface {
	Toggle(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ScanRequest is the body of POST /scans. A blank end takes the start's /24.
type ScanRequest struct {
	Start string `json:"start" validate:"required,max=64"`
	End   string `json:"end" validate:"max=64"`
}

// RescanRequest is the body of POST /scans/rescan: a range taken verbatim
// from a history entry.
type RescanRequest struct {
	Start string `json:"start" validate:"required,ipv4"`
	End   string `json:"end" validate:"required,ipv4"`
}

// ScanAcceptedResponse is returned once a scan has been accepted.
type ScanAcceptedResponse struct {
	Range  iprange.Range `json:"range"`
	Status string        `json:"status"`
}

// HostListResponse wraps the host table.
type HostListResponse struct {
	Hosts []hosts.Record `json:"hosts"`
	Total int            `json:"total"`
	Query string         `json:"query,omitempty"`
}

// HistoryResponse wraps recent scan entries.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// NormalizeResponse carries the canonical range and the end address the
// range editor would suggest.
type NormalizeResponse struct {
	Range      *iprange.Range `json:"range,omitempty"`
	Suggestion string         `json:"suggestion"`
	Error      string         `json:"error,omitempty"`
}

// MonitoringResponse reports the session after a monitoring command.
type MonitoringResponse struct {
	Monitoring bool          `json:"monitoring"`
	State      session.State `json:"state"`
}

// SessionHandler serves the session, scan, host and history endpoints.
type SessionHandler struct {
	session SessionService
	monitor MonitorService
	logger  *logging.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc SessionService, mon MonitorService, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SessionHandler{
		session: svc,
		monitor: mon,
		logger:  logger.WithComponent("api.session"),
	}
}

// GetSession returns the controller status.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.session.Status())
}

// StartScan handles POST /scans.
func (h *SessionHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSON(r, &req); err != nil {
		writeCodedError(w, r, err)
		return
	}

	rng, err := h.session.RequestScan(r.Context(), req.Start, req.End)
	if err != nil {
		h.logger.Info("Scan request refused",
			"request_id", requestID(r), "start", req.Start, "end", req.End, "error", err)
		writeCodedError(w, r, err)
		return
	}

	h.logger.InfoScan("Scan accepted", rng.String(), "request_id", requestID(r))
	writeJSON(w, r, http.StatusAccepted, ScanAcceptedResponse{Range: rng, Status: "accepted"})
}

// Rescan handles POST /scans/rescan.
func (h *SessionHandler) Rescan(w http.ResponseWriter, r *http.Request) {
	var req RescanRequest
	if err := parseJSON(r, &req); err != nil {
		writeCodedError(w, r, err)
		return
	}

	start, err := ipaddr.Parse(req.Start)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	end, err := ipaddr.Parse(req.End)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	entryRange, err := iprange.New(start, end)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}

	rng, err := h.session.RescanFromHistory(r.Context(), history.Entry{Range: entryRange})
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, ScanAcceptedResponse{Range: rng, Status: "accepted"})
}

// ListHosts handles GET /hosts?q=term.
func (h *SessionHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	list := h.session.Hosts(term)
	if list == nil {
		list = []hosts.Record{}
	}
	writeJSON(w, r, http.StatusOK, HostListResponse{Hosts: list, Total: len(list), Query: term})
}

// ListHistory handles GET /history.
func (h *SessionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.session.History(r.Context())
	if err != nil {
		h.logger.Error("Failed to load scan history", "request_id", requestID(r), "error", err)
		writeCodedError(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, r, http.StatusOK, HistoryResponse{Entries: entries})
}

// NormalizeRange handles GET /ranges/normalize?start=&end=. The suggestion
// is returned even when the range does not yet validate.
func (h *SessionHandler) NormalizeRange(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, end := query.Get("start"), query.Get("end")

	resp := NormalizeResponse{Suggestion: iprange.AutoSuggest(start, end)}
	rng, err := iprange.Normalize(start, end)
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, r, statusForError(err), resp)
		return
	}
	resp.Range = &rng
	writeJSON(w, r, http.StatusOK, resp)
}

// ToggleMonitoring handles POST /monitoring/toggle.
func (h *SessionHandler) ToggleMonitoring(w http.ResponseWriter, r *http.Request) {
	h.monitoringCommand(w, r, "toggle", h.monitor.Toggle)
}

// StartMonitoring handles POST /monitoring/start.
func (h *SessionHandler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	h.monitoringCommand(w, r, "start", h.monitor.Start)
}

// StopMonitoring handles POST /monitoring/stop.
func (h *SessionHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	h.monitoringCommand(w, r, "stop", h.monitor.Stop)
}

func (h *SessionHandler) monitoringCommand(w http.ResponseWriter, r *http.Request, name string,
	fn func(context.Context) error) {
	if err := fn(r.Context()); err != nil {
		h.logger.Info("Monitoring command refused", "request_id", requestID(r), "command", name, "error", err)
		writeCodedError(w, r, err)
		return
	}
	st := h.session.Status()
	writeJSON(w, r, http.StatusOK, MonitoringResponse{Monitoring: st.Monitoring, State: st.State})
}
