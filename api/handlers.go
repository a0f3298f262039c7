package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/yllada/vpn-panel/journal"
	"github.com/yllada/vpn-panel/vpn"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// StatusResponse is the body of GET /vpn and of successful actions.
type StatusResponse struct {
	Account string `json:"account,omitempty"`
	vpn.View
	// Action is the label of the one command the view offers.
	Action string `json:"action,omitempty"`
}

// HistoryEntry is one element of GET /vpn/history.
type HistoryEntry struct {
	Time    time.Time `json:"time"`
	Domain  string    `json:"domain"`
	State   string    `json:"state"`
	Error   string    `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) status() StatusResponse {
	v := h.panel.View()
	return StatusResponse{
		Account: h.panel.Account().ID,
		View:    v,
		Action:  v.Action().String(),
	}
}

// getStatus returns the current view.
func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// postAction runs a command and returns the view it left.
func (h *handlers) postAction(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["action"]
	action, ok := actions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown action " + name})
		return
	}

	if err := h.panel.Do(action); err != nil {
		code := http.StatusBadGateway
		switch {
		case errors.Is(err, vpn.ErrCommandUnavailable):
			code = http.StatusConflict
		case errors.Is(err, vpn.ErrClosed):
			code = http.StatusServiceUnavailable
		}
		h.log.Warn("Action %s failed: %v", name, err)
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

// getHistory lists recorded state changes, newest first.
func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "journal disabled"})
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.History(r.Context(), r.URL.Query().Get("domain"), limit)
	if err != nil {
		h.log.Error("Reading history: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "reading history failed"})
		return
	}
	writeJSON(w, http.StatusOK, toHistory(entries))
}

func toHistory(entries []journal.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			Time:    e.Time,
			Domain:  e.Domain,
			State:   e.State,
			Error:   e.Error,
			Message: e.Message,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
