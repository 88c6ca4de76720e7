package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/selfauth"
	"github.com/MrEthical07/selfauth/middleware"
)

const maxBodyBytes = 1 << 20

// Config wires optional collaborators into the handler.
type Config struct {
	Logger *slog.Logger
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// Ready is called by GET /healthz; nil always reports ok.
	Ready func(ctx context.Context) error
}

type api struct {
	engine *selfauth.Engine
	logger *slog.Logger
	ready  func(ctx context.Context) error
}

// NewHandler returns the routed API with access logging and client info
// attached.
func NewHandler(engine *selfauth.Engine, cfg Config) http.Handler {
	a := &api{engine: engine, logger: cfg.Logger, ready: cfg.Ready}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	authed := middleware.Guard(engine)
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", a.register)
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.Handle("POST /api/auth/logout", authed(http.HandlerFunc(a.logout)))
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(a.me)))
	mux.HandleFunc("POST /api/auth/session", a.session)
	mux.HandleFunc("POST /api/auth/password-reset-request", a.passwordResetRequest)
	mux.HandleFunc("POST /api/auth/password-reset-confirm", a.passwordResetConfirm)
	mux.HandleFunc("POST /api/auth/magic-link-request", a.magicLinkRequest)
	mux.HandleFunc("POST /api/auth/magic-link-login", a.magicLinkLogin)

	mux.Handle("POST /api/2fa/setup", authed(http.HandlerFunc(a.totpSetup)))
	mux.Handle("POST /api/2fa/verify", authed(http.HandlerFunc(a.totpVerify)))
	mux.Handle("POST /api/2fa/disable", authed(http.HandlerFunc(a.totpDisable)))

	mux.Handle("GET /api/users/profile", authed(http.HandlerFunc(a.me)))
	mux.Handle("PUT /api/users/profile", authed(http.HandlerFunc(a.updateProfile)))
	mux.Handle("PUT /api/users/password", authed(http.HandlerFunc(a.changePassword)))

	mux.Handle("GET /api/admin/users/{id}", admin(a.adminGet))
	mux.Handle("PATCH /api/admin/users/{id}", admin(a.adminUpdate))
	mux.Handle("DELETE /api/admin/users/{id}", admin(a.adminDelete))

	mux.HandleFunc("GET /healthz", a.healthz)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return a.accessLog(middleware.ClientInfo(cfg.TrustProxy)(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *api) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		if err := a.ready(r.Context()); err != nil {
			a.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, message{Message: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, message{Message: "ok"})
}

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst. Malformed bodies map to
// selfauth.ErrInvalidInput.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, selfauth.ErrInvalidInput)
		return false
	}
	return true
}

// fail writes err, logging only what the client cannot see.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	if middleware.StatusOf(err) >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "kind", string(selfauth.KindOf(err)), "error", err)
	}
	middleware.WriteError(w, err)
}

func identity(r *http.Request) selfauth.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}
