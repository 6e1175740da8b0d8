// Package httpapi is the thin HTTP shell around the Search Service and the
// administrative cache-invalidation endpoint (spec.md §6, out of core
// scope beyond the contract named there).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wavesplatform/assetindex/internal/cache"
	"github.com/wavesplatform/assetindex/internal/model"
	"github.com/wavesplatform/assetindex/internal/search"
)

// HealthChecker is satisfied by *coordinator.Coordinator; kept as an
// interface here so httpapi doesn't import coordinator directly.
type HealthChecker interface {
	Health() (live bool, ready bool, reason error)
}

// NewRouter builds the full HTTP surface: asset lookup, search, health,
// readiness, and the administrative invalidation endpoint.
func NewRouter(svc *search.Service, c cache.Cache, health HealthChecker, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zapLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", healthHandler(health))
	r.Get("/ready", readyHandler(health))

	r.Route("/assets", func(r chi.Router) {
		r.Get("/{id}", assetHandler(svc))
		r.Get("/search", searchHandler(svc))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/cache/invalidate", invalidateHandler(c))
	})

	return r
}

func assetHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		asset, ok, err := svc.Asset(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	}
}

func searchHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := search.Query{
			AssetID: q.Get("id"),
			Ticker:  q.Get("ticker"),
			Name:    q.Get("name"),
			Label:   q.Get("label"),
			Issuer:  q.Get("issuer"),
			Status:  model.VerificationStatus(q.Get("status")),
			Limit:   atoiDefault(q.Get("limit"), 50),
			Offset:  atoiDefault(q.Get("offset"), 0),
		}
		results, err := svc.Search(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// invalidateHandler is the administrative surface named in spec.md §6:
// POST /admin/cache/invalidate?mode={all_data|assets_blockchain_data|
// assets_user_defined_data|asset_labels}.
func invalidateHandler(c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := model.InvalidationMode(r.URL.Query().Get("mode"))
		switch mode {
		case model.InvalidateAll, model.InvalidateBlockchainData,
			model.InvalidateUserDefinedData, model.InvalidateLabels:
		default:
			writeError(w, http.StatusBadRequest, errBadMode)
			return
		}
		if err := c.Invalidate(r.Context(), mode); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func healthHandler(h HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live, _, reason := h.Health()
		if !live {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "halted", "reason": reason.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
	}
}

func readyHandler(h HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live, ready, _ := h.Health()
		if !live || !ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "syncing"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
