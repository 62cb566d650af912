package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"smaug.org/internal/audit"
	"smaug.org/internal/obs"
	"smaug.org/internal/opa"
	"smaug.org/internal/permit"
	"smaug.org/internal/upstream"
)

// Fixed check target for the debugging routes: can the caller read the HRS
// resource type.
const (
	checkAction   = "read"
	checkResource = "HRS"
)

// --- attribute exports ---

func (a *API) handleUserExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	users, err := a.dir.ListUserAttributes(r.Context())
	if err != nil {
		a.persistenceError(w, r, "users", err)
		return
	}
	obs.Logger().Info("served user attribute export", zap.Int("rows", len(users)))
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleOrgExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	orgs, err := a.dir.ListOrgAttributes(r.Context())
	if err != nil {
		a.persistenceError(w, r, "organisations", err)
		return
	}
	obs.Logger().Info("served organisation attribute export", zap.Int("rows", len(orgs)))
	writeJSON(w, http.StatusOK, orgs)
}

// The store's failure detail stays in the logs; callers on the other side of
// the trust boundary get a generic message, unlike upstream errors which are
// relayed verbatim.
func (a *API) persistenceError(w http.ResponseWriter, r *http.Request, what string, err error) {
	obs.Logger().Error("attribute export failed",
		zap.String("export", what),
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "Failed to fetch attributes from database.")
}

// --- permission checks ---

type checkResponse struct {
	Email    string `json:"email"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Allowed  bool   `json:"allowed"`
}

func (a *API) handleCheckUserPermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	email, ok := requiredQuery(w, r, "email")
	if !ok {
		return
	}

	allowed, err := a.permit.Check(r.Context(),
		permit.CheckUser{Key: email},
		checkAction,
		permit.CheckResource{Type: checkResource},
		map[string]any{"__debug": true})
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "permission.check", map[string]any{
		"subject": email, "action": checkAction, "resource": checkResource, "allowed": allowed,
	})
	writeJSON(w, http.StatusOK, checkResponse{Email: email, Action: checkAction, Resource: checkResource, Allowed: allowed})
}

func (a *API) handleCheckResourceUserCountry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	email, ok := requiredQuery(w, r, "email")
	if !ok {
		return
	}
	resource, ok := requiredQuery(w, r, "resourceX")
	if !ok {
		return
	}

	// Best-effort identity sync; a failure is logged and the check proceeds.
	if _, err := a.permit.SyncUser(r.Context(), email, email); err != nil {
		obs.Logger().Warn("user sync to Permit.io cloud failed, continuing with check",
			zap.String("subject", email),
			zap.Error(err))
	}

	allowed, err := a.permit.Check(r.Context(),
		permit.CheckUser{Key: email},
		checkAction,
		permit.CheckResource{Type: resource},
		map[string]any{"role": "admin", "__debug": true})
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "permission.check", map[string]any{
		"subject": email, "action": checkAction, "resource": resource, "allowed": allowed,
	})
	writeJSON(w, http.StatusOK, checkResponse{Email: email, Action: checkAction, Resource: resource, Allowed: allowed})
}

func (a *API) handleCheckInlineAttributes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	email, ok := requiredQuery(w, r, "email")
	if !ok {
		return
	}

	// The inline override bypasses the synced attribute store for this one
	// check; the country value is a fixed probe.
	user := permit.CheckUser{
		Key: email,
		Attributes: map[string]any{
			"country": "England",
			"debug":   "debug_yes",
		},
	}
	allowed, err := a.permit.Check(r.Context(), user, checkAction, permit.CheckResource{Type: checkResource}, nil)
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "permission.check_inline", map[string]any{
		"subject": email, "action": checkAction, "resource": checkResource, "allowed": allowed,
	})
	writeJSON(w, http.StatusOK, checkResponse{Email: email, Action: checkAction, Resource: checkResource, Allowed: allowed})
}

// --- cloud / local PDP reads ---

func (a *API) handleCloudOptimizedData(w http.ResponseWriter, r *http.Request) {
	a.relay(w, r, func() (map[string]any, error) { return a.permit.OptimizedData(r.Context()) })
}

func (a *API) handleOPAUserData(w http.ResponseWriter, r *http.Request) {
	a.relay(w, r, func() (map[string]any, error) { return a.opa.Data(r.Context(), "smaug") })
}

func (a *API) handleOPAOrgData(w http.ResponseWriter, r *http.Request) {
	a.relay(w, r, func() (map[string]any, error) { return a.opa.Data(r.Context(), "org") })
}

func (a *API) handleOPAPolicies(w http.ResponseWriter, r *http.Request) {
	a.relay(w, r, func() (map[string]any, error) { return a.opa.Policies(r.Context()) })
}

func (a *API) handleReadOpalScope(w http.ResponseWriter, r *http.Request) {
	a.relay(w, r, func() (map[string]any, error) { return a.permit.OpalScope(r.Context()) })
}

// relay runs a GET-only upstream read and forwards the JSON result.
func (a *API) relay(w http.ResponseWriter, r *http.Request, call func() (map[string]any, error)) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	out, err := call()
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- configuration pushes ---

func (a *API) handlePushOpalScope(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}

	entries := permit.DefaultScopeEntries(a.cfg.SelfURL)
	out, err := a.permit.PushOpalScope(r.Context(), entries)
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "opal.scope.push", map[string]any{
		"entries": len(entries),
	})
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePushPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}

	out, err := a.opa.ReplacePolicy(r.Context(), opa.SmaugPolicyID, opa.SmaugRules)
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "opal.policy.push", map[string]any{
		"policy_id": opa.SmaugPolicyID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"policy_id":    opa.SmaugPolicyID,
		"opa_response": out,
	})
}

// --- error mapping ---

// upstreamError translates client errors per the taxonomy: non-2xx upstream
// statuses pass through with the raw body appended, transport failures map
// to 503 naming the target, anything else is a generic 500.
func (a *API) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var se *upstream.StatusError
	var te *upstream.TransportError
	switch {
	case errors.As(err, &se):
		writeError(w, r, se.StatusCode, fmt.Sprintf("%s API Error: %s", se.Service, se.Body))
	case errors.As(err, &te):
		writeError(w, r, http.StatusServiceUnavailable, te.Error())
	default:
		obs.Logger().Error("proxy call failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func requiredQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		writeError(w, r, http.StatusBadRequest, name+" query parameter is required")
		return "", false
	}
	return v, true
}
