package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/odyssey-resale/internal/observability"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
)

const (
	// HeaderOwnerID names the lot pool a request operates on.
	HeaderOwnerID = "X-Owner-ID"
	// HeaderActorID identifies the acting user for audit records.
	HeaderActorID = "X-Actor-ID"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the Odyssey middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	limit := 60
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitPerMinute > 0 {
			limit = cfg.Config.RateLimitPerMinute
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP, keyByOwner)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// keyByOwner adds the owner header to the rate limit bucket key.
func keyByOwner(r *http.Request) (string, error) {
	return strings.TrimSpace(r.Header.Get(HeaderOwnerID)), nil
}

// RequireOwner rejects requests without an owner header and stores the owner and
// optional actor on the request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
		if owner == "" {
			httpx.Problem(w, http.StatusBadRequest, "Owner Required", shared.ErrOwnerRequired.Error())
			return
		}
		ctx := shared.ContextWithOwner(r.Context(), owner)
		if raw := strings.TrimSpace(r.Header.Get(HeaderActorID)); raw != "" {
			actor, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || actor < 0 {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "X-Actor-ID must be a non-negative integer")
				return
			}
			ctx = shared.ContextWithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
