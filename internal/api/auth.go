package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/maproulette/backend/internal/authz"
)

// IdentityResolver exchanges a bearer token (an OSM OAuth access token) for
// the authz.Identity it belongs to. Token validation against OSM's own
// /user/details endpoint, and any local caching of the result, is the
// resolver's business, not this middleware's.
type IdentityResolver func(ctx context.Context, token string) (authz.Identity, error)

type identityContextKey struct{}
type tokenContextKey struct{}

// IdentityFromContext returns the identity AuthMiddleware attached to the
// request context, or authz.Identity{ID: authz.GuestID} if none was.
func IdentityFromContext(ctx context.Context) authz.Identity {
	if id, ok := ctx.Value(identityContextKey{}).(authz.Identity); ok {
		return id
	}
	return authz.Identity{ID: authz.GuestID}
}

// TokenFromContext returns the bearer token AuthMiddleware extracted from
// the request, or "" if none was presented. The OSM submission endpoints
// use this directly as the caller's OSM OAuth access token — accounts are
// OSM identities, and no separate local credential store exists.
func TokenFromContext(ctx context.Context) string {
	if tok, ok := ctx.Value(tokenContextKey{}).(string); ok {
		return tok
	}
	return ""
}

// AuthMiddleware resolves a request's bearer token to an identity and
// records an audit trail of every authenticated request, mirroring the
// shape of the teacher's own token-gated control endpoints.
type AuthMiddleware struct {
	resolve   IdentityResolver
	logger    *slog.Logger
	auditFile *os.File
}

// NewAuthMiddleware builds an AuthMiddleware. auditLogPath, if non-empty, is
// opened append-only and receives one JSON line per authenticated request.
func NewAuthMiddleware(resolve IdentityResolver, auditLogPath string, logger *slog.Logger) (*AuthMiddleware, error) {
	if logger == nil {
		logger = slog.Default()
	}
	am := &AuthMiddleware{resolve: resolve, logger: logger}
	if auditLogPath != "" {
		f, err := os.OpenFile(auditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		am.auditFile = f
	}
	return am, nil
}

func (am *AuthMiddleware) Close() error {
	if am.auditFile != nil {
		return am.auditFile.Close()
	}
	return nil
}

type auditEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	RemoteAddr string    `json:"remote_addr"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	UserID     int64     `json:"user_id,omitempty"`
	Authorized bool      `json:"authorized"`
	Error      string    `json:"error,omitempty"`
}

func (am *AuthMiddleware) logAudit(event auditEvent) {
	if am.auditFile == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		am.logger.Error("failed to marshal audit event", "error", err)
		return
	}
	if _, err := am.auditFile.Write(append(data, '\n')); err != nil {
		am.logger.Error("failed to write audit event", "error", err)
	}
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Identify resolves the caller's identity (guest if no or an invalid
// bearer token was presented) and attaches it to the request context. It
// never itself rejects a request; handlers that require a non-guest
// identity check authz.Identity.IsGuest or rely on the authz.Checker.
func (am *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := auditEvent{Timestamp: time.Now(), RemoteAddr: r.RemoteAddr, Method: r.Method, Path: r.URL.Path}

		token := extractToken(r)
		identity := authz.Identity{ID: authz.GuestID}
		if token != "" {
			resolved, err := am.resolve(r.Context(), token)
			if err != nil {
				event.Error = err.Error()
			} else {
				identity = resolved
				event.UserID = identity.ID
				event.Authorized = true
			}
		}
		am.logAudit(event)

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		ctx = context.WithValue(ctx, tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
