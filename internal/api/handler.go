package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recruitsql/recruitsql/internal/auth"
	"github.com/recruitsql/recruitsql/internal/config"
	"github.com/recruitsql/recruitsql/internal/observability"
	"github.com/recruitsql/recruitsql/internal/pipeline"
	"github.com/recruitsql/recruitsql/internal/query"
	"github.com/recruitsql/recruitsql/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// QuestionAnswerer is the question pipeline as seen by the HTTP layer.
type QuestionAnswerer interface {
	Invoke(ctx context.Context, question string) (query.Result, error)
	Translate(ctx context.Context, question string) (pipeline.Translation, error)
	ModelName() string
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	// Pipeline is nil when no model provider is configured.
	Pipeline QuestionAnswerer
	Schema   schema.Descriptor
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	protected.HandleFunc("GET /v1/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /query", protectedHandler)
	mux.Handle("GET /v1/translate", protectedHandler)
	mux.Handle("GET /v1/schema", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// Pinger is anything that can report whether a backing service is
// reachable: *sql.DB, the redis cache, the object store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

func CheckDependency(name string, pinger Pinger) ReadinessCheck {
	if pinger == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("%s is not reachable: %w", name, err)
		}
		return nil
	}
}

func CheckModelConfigured(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Model.Provider == config.ModelProviderNone {
			return errors.New("no model provider is configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireAnyRole(r *http.Request, roles ...string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("missing required role, expected one of %q", strings.Join(roles, ","))
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	payload := map[string]any{
		"Error":      message,
		"error_code": code,
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	}
	if len(extra) > 0 {
		payload["context"] = extra
	}
	writeJSON(w, status, payload)
}
