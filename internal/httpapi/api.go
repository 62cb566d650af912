package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"smaug.org/internal/config"
	"smaug.org/internal/directory"
	"smaug.org/internal/obs"
	"smaug.org/internal/opa"
	"smaug.org/internal/permit"
)

// ReadyProbe checks readiness (e.g., a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	dir    directory.Service
	permit *permit.Client
	opa    *opa.Client
	cfg    *config.Config

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, dir directory.Service, permitClient *permit.Client, opaClient *opa.Client, cfg *config.Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		dir:        dir,
		permit:     permitClient,
		opa:        opaClient,
		cfg:        cfg,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// Attribute exports polled by the PDP's data fetcher.
	a.mux.HandleFunc("/opal/read_current_db_attributes", a.handleUserExport)
	a.mux.HandleFunc("/opal/read_organization", a.handleOrgExport)

	// Authorization checks relayed to the PDP.
	a.mux.HandleFunc("/opal/check_user_permission", a.handleCheckUserPermission)
	a.mux.HandleFunc("/opal/check_resource_user_country", a.handleCheckResourceUserCountry)
	a.mux.HandleFunc("/opal/check_permission_with_inline_attributes", a.handleCheckInlineAttributes)

	// Cloud / local PDP reads.
	a.mux.HandleFunc("/opal/read_attributes_from_permitcloud", a.handleCloudOptimizedData)
	a.mux.HandleFunc("/opal/read_USER_attributes_from_local_opa_instance", a.handleOPAUserData)
	a.mux.HandleFunc("/opal/read_ORG_attributes_from_local_opa_instance", a.handleOPAOrgData)
	a.mux.HandleFunc("/opal/read_policies_from_local_opa_instance", a.handleOPAPolicies)
	a.mux.HandleFunc("/opal/read_opal_scope_from_permitcloud", a.handleReadOpalScope)

	// Configuration pushes.
	a.mux.HandleFunc("/opal/push_opa_config_to_permitcloud", a.handlePushOpalScope)
	a.mux.HandleFunc("/opal/push_custom_policy_for_smaug_data", a.handlePushPolicy)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withIdentity(a.mux)
	h = LoggingJSON(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = RequestID(h)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "smaug-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "smaug-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
