// Package api serves the VPN section over a local HTTP API.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/journal"
	"github.com/yllada/vpn-panel/vpn"
)

// Panel is the part of the panel the API drives.
type Panel interface {
	Account() vpn.Account
	View() vpn.View
	Do(a vpn.Action) error
}

// History lists recorded state changes.
type History interface {
	History(ctx context.Context, domain string, limit int) ([]journal.Entry, error)
}

// actions maps URL names to commands.
var actions = map[string]vpn.Action{
	"connect":    vpn.ActionConnect,
	"disconnect": vpn.ActionDisconnect,
	"retry":      vpn.ActionRetry,
	"enable":     vpn.ActionEnable,
	"install":    vpn.ActionInstallHelper,
}

type handlers struct {
	panel   Panel
	history History
	log     common.Logger
}

// NewRouter builds the API routes. history and metrics may be nil.
func NewRouter(panel Panel, history History, metrics http.Handler) *mux.Router {
	h := &handlers{panel: panel, history: history, log: common.Component("api")}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/vpn", h.getStatus).Methods("GET")
	r.HandleFunc("/vpn/history", h.getHistory).Methods("GET")
	r.HandleFunc("/vpn/{action:[a-z]+}", h.postAction).Methods("POST")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	return r
}

// Serve runs handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	common.LogInfo("API listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
