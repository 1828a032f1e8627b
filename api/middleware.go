package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/VYBRANDMEDIA/nannygo/internal/auth"
	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

type ctxKey string

const (
	ctxIdentity ctxKey = "identity"
	ctxClaims   ctxKey = "claims"
)

// package-level logger used by middleware and helpers; can be set via SetLogger from caller
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the api package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// IdentityFrom returns the identity the JWT middleware stored in ctx.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(models.Identity)
	return id, ok
}

func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxClaims).(*auth.Claims)
	return c, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// MetricsMiddleware records request durations labelled by route template so
// ids in paths do not explode cardinality.
func MetricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveHTTP(r.Method, route, rec.status, start)
		})
	}
}

// CORSMiddleware allows the listed origins; "*" allows any.
func CORSMiddleware(origins []string) mux.MiddlewareFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic", slog.Any("err", err), slog.String("path", r.URL.Path))
				writeErrorCode(w, domainerr.CodeInternal, "internal error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// JWTAuthMiddleware verifies the bearer token, rejects revoked tokens and
// stores the caller's identity in the request context.
func JWTAuthMiddleware(tokens *auth.TokenManager, revoked auth.Revocations) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorCode(w, domainerr.CodeUnauthorized, "missing Authorization header")
				return
			}
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				writeErrorCode(w, domainerr.CodeUnauthorized, "invalid Authorization header")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(tokenString))
			if err != nil {
				writeErrorCode(w, domainerr.CodeUnauthorized, "invalid or expired token")
				return
			}
			identity, err := claims.Identity()
			if err != nil {
				writeErrorCode(w, domainerr.CodeUnauthorized, "invalid or expired token")
				return
			}
			if revoked != nil {
				gone, err := revoked.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					logger.ErrorContext(r.Context(), "revocation lookup failed", slog.Any("err", err))
					writeErrorCode(w, domainerr.CodeUnavailable, "token store unavailable")
					return
				}
				if gone {
					writeErrorCode(w, domainerr.CodeUnauthorized, "token has been revoked")
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxIdentity, identity)
			ctx = context.WithValue(ctx, ctxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
