// Package server is the HTTP surface: the earnings page and its actions, a
// JSON API, chart snapshots and the optional shared-key proxy.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"epschart/cache"
	"epschart/controller"
	"epschart/credential"
	"epschart/earnings"
	"epschart/logger"
	"epschart/render"
)

// Snapshotter turns a standalone chart document into a PNG.
type Snapshotter interface {
	Snapshot(ctx context.Context, html []byte) ([]byte, error)
}

type Options struct {
	Sessions *controller.Store
	Lookup   controller.Lookup
	// Proxy, Snapshots and Cache are optional.
	Proxy     http.Handler
	Snapshots Snapshotter
	Cache     *cache.Cache
}

type Server struct {
	sessions  *controller.Store
	lookup    controller.Lookup
	proxy     http.Handler
	snapshots Snapshotter
	cache     *cache.Cache
}

func New(o Options) *Server {
	return &Server{
		sessions:  o.Sessions,
		lookup:    o.Lookup,
		proxy:     o.Proxy,
		snapshots: o.Snapshots,
		cache:     o.Cache,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/earnings", s.handleEarnings).Methods(http.MethodGet)
	router.HandleFunc("/key", s.handleSaveKey).Methods(http.MethodPost)
	router.HandleFunc("/lines/toggle", s.handleToggle).Methods(http.MethodPost)
	router.HandleFunc("/api/earnings/{ticker}", s.handleAPI).Methods(http.MethodGet)
	router.HandleFunc("/chart.png", s.handleChartPNG).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.proxy != nil {
		router.Handle("/eps", s.proxy).Methods(http.MethodGet)
	}
	return router
}

// Handler is the router behind recovery, access logging and compression.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.CompressHandler(h)
	h = handlers.CombinedLoggingHandler(logger.Writer{}, h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger.Writer{}),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r, s.sessions.ForRequest(w, r))
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.ForRequest(w, r)
	ticker := r.URL.Query().Get("ticker")

	err := ctrl.Fetch(r.Context(), ticker, credential.FromRequest(r))
	if errors.Is(err, controller.ErrSuperseded) {
		logger.Debugf("earnings %q superseded, showing newer state", ticker)
	}
	s.writePage(w, r, ctrl)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) {
	data := ctrl.View()
	data.KeySaved = credential.FromRequest(r).Mode == credential.ModeDirect

	var buf bytes.Buffer
	if err := render.WritePage(&buf, data); err != nil {
		logger.Errorf("render page failed: %v", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSaveKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	cred, err := credential.Save(w, r.PostFormValue("key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.Infof("credential saved, mode %s", cred.Mode)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	patch := s.sessions.ForRequest(w, r).ToggleLines()
	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

type apiResponse struct {
	Symbol   string          `json:"symbol"`
	Quarters []render.Row    `json:"quarters"`
	Series   earnings.Series `json:"series"`
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	series, err := s.lookup.Lookup(r.Context(), credential.FromRequest(r), ticker)
	if err != nil {
		logger.Warnf("api earnings %q failed: %v", ticker, err)
		writeJSON(w, apiStatus(err), apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Symbol:   series.Symbol,
		Quarters: render.Rows(series),
		Series:   series,
	})
}

func apiStatus(err error) int {
	var statusErr *earnings.StatusError
	var upstreamErr *earnings.UpstreamError
	switch {
	case errors.Is(err, earnings.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &upstreamErr):
		return http.StatusNotFound
	case errors.As(err, &statusErr), errors.Is(err, earnings.ErrUnexpectedShape):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		http.Error(w, "Snapshots are disabled", http.StatusNotFound)
		return
	}
	doc, ok := s.sessions.ForRequest(w, r).Standalone()
	if !ok {
		http.Error(w, "No chart rendered yet", http.StatusNotFound)
		return
	}
	png, err := s.snapshots.Snapshot(r.Context(), doc)
	if err != nil {
		logger.Errorf("chart snapshot failed: %v", err)
		http.Error(w, "Error rendering snapshot", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "cache": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Error marshaling to JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonData)
}
