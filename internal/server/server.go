package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stickfigures/internal/config"
	"stickfigures/internal/formauth"
	"stickfigures/internal/ledger"
	"stickfigures/internal/view"
	"stickfigures/internal/wallet"
)

// Controller is the part of the application the HTTP surface drives.
type Controller interface {
	Store() *view.Store
	Ledger() ledger.Store
	Connect(ctx context.Context, passphrase string) error
	StartMint(ctx context.Context) error
	Disconnect()
}

type Server struct {
	cfg         *config.AppConfig
	ctrl        Controller
	forms       *formauth.Issuer
	metrics     http.Handler
	log         *zap.Logger
	page        view.Page
	upgrader    websocket.Upgrader
	handler     http.Handler
	httpServer  *http.Server
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error

	closing   chan struct{}
	closeOnce sync.Once
}

const (
	defaultMintsLimit = 20
	maxMintsLimit     = 200
)

func NewServer(cfg *config.AppConfig, ctrl Controller, metrics http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}

	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		forms: &formauth.Issuer{
			Secret: cfg.Service.FormSecret,
			MaxAge: cfg.Service.FormTokenTTL,
		},
		metrics: metrics,
		log:     log.With(zap.String("component", "server")),
		page: view.Page{
			Title:         cfg.Page.Title,
			Description:   cfg.Page.Description,
			TwitterHandle: cfg.Page.TwitterHandle,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		closing: make(chan struct{}),
	}

	if checker, ok := ctrl.Ledger().(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc(view.StylesheetPath, handleStylesheet)
	mux.Handle("/connect", s.forms.Middleware(http.HandlerFunc(s.handleConnect)))
	mux.Handle("/mint", s.forms.Middleware(http.HandlerFunc(s.handleMint)))
	mux.Handle("/disconnect", s.forms.Middleware(http.HandlerFunc(s.handleDisconnect)))
	mux.HandleFunc("/ws", s.handleLive)
	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/mints", s.handleMints)
	mux.Handle("/api/v1/metrics", metrics)
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.handler = requestIDMiddleware(s.log, mux)
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Service.BindAddr, strconv.Itoa(cfg.Service.HTTPPort)),
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// SetRPCHealth installs the chain reachability probe reported by /api/v1/health.
func (s *Server) SetRPCHealth(fn func(context.Context) error) {
	s.rpcHealthFn = fn
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and closes live page connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page := s.page
	page.FormToken = s.forms.Issue()

	var buf bytes.Buffer
	if err := view.Render(&buf, page, s.ctrl.Store().Snapshot()); err != nil {
		s.log.Error("render failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func handleStylesheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(view.Stylesheet))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Store().Snapshot())
}

type actionResponse struct {
	State view.Snapshot `json:"state"`
	Error string        `json:"error,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	err := s.ctrl.Connect(r.Context(), r.FormValue("passphrase"))
	s.respond(w, r, http.StatusOK, err)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	err := s.ctrl.StartMint(r.Context())
	s.respond(w, r, http.StatusAccepted, err)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Disconnect()
	s.respond(w, r, http.StatusOK, nil)
}

// respond answers form posts with a redirect back to the page and API callers
// with the resulting state.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, okStatus int, err error) {
	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	resp := actionResponse{State: s.ctrl.Store().Snapshot()}
	status := okStatus
	if err != nil {
		resp.Error = err.Error()
		status = actionStatus(err)
	}
	writeJSON(w, status, resp)
}

func actionStatus(err error) int {
	switch {
	case errors.Is(err, wallet.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrProviderAbsent):
		return http.StatusServiceUnavailable
	case errors.Is(err, view.ErrNotConnected), errors.Is(err, view.ErrMintInFlight):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) handleMints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultMintsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxMintsLimit)
	}

	records, err := s.ctrl.Ledger().List(r.Context(), limit)
	if err != nil {
		s.log.Warn("list mints failed", zap.Error(err))
		http.Error(w, "failed to list mints", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, struct {
		Mints []ledger.Record `json:"mints"`
	}{Mints: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status   string      `json:"status"`
		RPC      interface{} `json:"rpc"`
		Database interface{} `json:"database"`
		Phase    view.Phase  `json:"phase"`
	}{
		Status:   status,
		RPC:      rpcInfo,
		Database: dbInfo,
		Phase:    s.ctrl.Store().Snapshot().Phase,
	}

	code := http.StatusOK
	if !overallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}
