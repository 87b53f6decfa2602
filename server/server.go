// Package server exposes pool health, pool statistics and a tracked catalog
// probe over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/dberr"
	"github.com/Konsultn-Engineering/txscope/logging"
	"github.com/Konsultn-Engineering/txscope/query"
	"github.com/Konsultn-Engineering/txscope/session"
)

const (
	defaultTableLimit = 50
	maxTableLimit     = 500
)

// Handler serves the txscope HTTP endpoints.
type Handler struct {
	manager *session.Manager
	metrics bool
}

func New(m *session.Manager, exposeMetrics bool) *Handler {
	if m == nil {
		m = session.DefaultManager()
	}
	return &Handler{manager: m, metrics: exposeMetrics}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(correlationID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	if h.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Route("/pools", func(r chi.Router) {
		r.Get("/", h.Pools)
		r.Get("/{pool}/tables", h.Tables)
	})
	return r
}

// correlationID carries the chi request id into the logging context.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		} else {
			ctx = logging.ContextWithNewCorrelationID(ctx)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := connector.Health(ctx, h.manager.Registry()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type poolInfo struct {
	Name  string                    `json:"name"`
	Stats connector.ConnectionStats `json:"stats"`
}

func (h *Handler) Pools(w http.ResponseWriter, r *http.Request) {
	reg := h.manager.Registry()
	names := reg.Names()
	out := make([]poolInfo, 0, len(names))
	for _, name := range names {
		pool, err := reg.Pool(name)
		if err != nil {
			continue
		}
		out = append(out, poolInfo{Name: name, Stats: connector.Stats(pool)})
	}
	writeJSON(w, http.StatusOK, out)
}

type tablesResponse struct {
	Pool    string                     `json:"pool"`
	Tables  []database.Row             `json:"tables"`
	Queries []map[string]any           `json:"queries"`
	Summary []session.StatementSummary `json:"summary"`
}

// Tables lists the tables of a schema inside a tracked transaction and
// returns the statements it issued alongside the rows.
func (h *Handler) Tables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pool := chi.URLParam(r, "pool")

	schemaName := r.URL.Query().Get("schema")
	if schemaName == "" {
		schemaName = "public"
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	q := query.New("information_schema.tables").
		Select("table_name", "table_type").
		Where("table_schema", schemaName).
		OrderByAsc("table_name").
		Limit(limit)

	resp := tablesResponse{Pool: pool}
	err = h.manager.TrackQueries(ctx, func(ctx context.Context, t *session.Tracker) error {
		txErr := h.manager.Transaction(ctx, pool, func(ctx context.Context, _ database.Tx) error {
			sql, params := q.Build()
			rows, err := session.FetchAll(ctx, sql, params...)
			if err != nil {
				return err
			}
			resp.Tables = rows
			return nil
		})
		resp.Queries = t.Export()
		resp.Summary = t.Summary()
		return txErr
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dberr.ErrConfiguration) {
			status = http.StatusNotFound
		}
		logging.Ctx(ctx).Error().Err(err).Str("pool", pool).Msg("table probe failed")
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if resp.Tables == nil {
		resp.Tables = []database.Row{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultTableLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxTableLimit), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}
