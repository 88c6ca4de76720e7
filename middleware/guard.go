package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/selfauth"
)

// Authenticator resolves a bearer token to an identity. *selfauth.Engine
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (selfauth.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (selfauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(selfauth.Identity)
	return id, ok
}

// WithIdentity stores id in ctx the way Guard does.
func WithIdentity(ctx context.Context, id selfauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard requires a valid bearer token for an active account. The account is
// reloaded on every request, so deactivation takes effect immediately.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteError(w, selfauth.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, selfauth.ErrInvalidCredentials)
				return
			}

			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin must run after Guard. Non-admins get 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			WriteError(w, selfauth.ErrInvalidCredentials)
			return
		}
		if !id.Admin {
			WriteError(w, selfauth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientInfo attaches the caller's IP and User-Agent to the request context
// for session records and audit events. With trustProxy set, the first
// X-Forwarded-For entry wins over RemoteAddr.
func ClientInfo(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := selfauth.WithClientIP(r.Context(), clientIP(r, trustProxy))
			ctx = selfauth.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
