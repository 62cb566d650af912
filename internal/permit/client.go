// Package permit talks to the Permit.io control plane and to the PDP's
// /allowed endpoint. It adds the service credential and relays responses;
// every authorization decision is made upstream, never here.
package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"smaug.org/internal/config"
	"smaug.org/internal/upstream"
)

const (
	cloudServiceName = "Permit.io"
	pdpServiceName   = "Permit PDP"
)

// Client issues requests against the cloud management API and the PDP.
type Client struct {
	cloud *upstream.Caller
	pdp   *upstream.Caller
	cfg   *config.Config
}

// New wires a client from validated configuration and a shared HTTP client
// carrying the outbound timeout.
func New(cfg *config.Config, httpClient *http.Client) *Client {
	return &Client{
		cloud: &upstream.Caller{
			Service: cloudServiceName,
			BaseURL: cfg.PermitAPIURL,
			Token:   cfg.PermitAPIKey,
			HTTP:    httpClient,
		},
		pdp: &upstream.Caller{
			Service: pdpServiceName,
			BaseURL: cfg.PDPURL,
			Token:   cfg.PermitAPIKey,
			HTTP:    httpClient,
		},
		cfg: cfg,
	}
}

// CheckUser identifies the subject of an authorization check: a bare key, or
// a key with an inline attribute override.
type CheckUser struct {
	Key        string
	Attributes map[string]any
}

func (u CheckUser) payload() any {
	if len(u.Attributes) == 0 {
		return u.Key
	}
	return map[string]any{"key": u.Key, "attributes": u.Attributes}
}

// CheckResource identifies the object of a check by resource type.
type CheckResource struct {
	Type string
}

// Check asks the PDP whether user may perform action on resource. The
// decision comes back verbatim from the "allow" field.
func (c *Client) Check(ctx context.Context, user CheckUser, action string, resource CheckResource, checkCtx map[string]any) (bool, error) {
	payload := map[string]any{
		"user":     user.payload(),
		"action":   action,
		"resource": map[string]any{"type": resource.Type},
	}
	if len(checkCtx) > 0 {
		payload["context"] = checkCtx
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal check payload: %w", err)
	}
	status, respBody, _, err := c.pdp.Do(ctx, http.MethodPost, "/allowed", "application/json", body)
	if err != nil {
		return false, err
	}
	if status < 200 || status > 299 {
		return false, &upstream.StatusError{Service: pdpServiceName, StatusCode: status, Body: string(respBody)}
	}

	var decision struct {
		Allow bool `json:"allow"`
	}
	if err := json.Unmarshal(respBody, &decision); err != nil {
		return false, fmt.Errorf("decode %s decision: %w", pdpServiceName, err)
	}
	return decision.Allow, nil
}

// SyncUser upserts a minimal identity fact for key in the cloud environment.
// Callers treat failures as non-fatal.
func (c *Client) SyncUser(ctx context.Context, key, email string) (map[string]any, error) {
	path := fmt.Sprintf("/facts/%s/%s/users/%s",
		c.cfg.ProjectID, c.cfg.EnvID, url.PathEscape(key))
	payload := map[string]any{
		"key":        key,
		"email":      email,
		"attributes": map[string]any{},
	}
	return c.doCloudJSON(ctx, http.MethodPut, path, payload)
}

// OptimizedData fetches the precomputed OPAL data bundle for this
// environment from the cloud.
func (c *Client) OptimizedData(ctx context.Context) (map[string]any, error) {
	path := fmt.Sprintf("/internal/opal_data/%s/%s/%s/optimized",
		c.cfg.OrgID, c.cfg.ProjectID, c.cfg.EnvID)
	return c.doCloudJSON(ctx, http.MethodGet, path, nil)
}

// OpalScope reads the environment's data-source scope configuration.
func (c *Client) OpalScope(ctx context.Context) (map[string]any, error) {
	return c.doCloudJSON(ctx, http.MethodGet, c.scopePath(), nil)
}

// DataSourceEntry registers one external URL the PDP should poll and where
// to mount the fetched document in its in-memory store.
type DataSourceEntry struct {
	URL                    string           `json:"url"`
	DstPath                string           `json:"dst_path"`
	PeriodicUpdateInterval int              `json:"periodic_update_interval"`
	Config                 DataSourceConfig `json:"config"`
}

type DataSourceConfig struct {
	Method      string            `json:"method"`
	FetchOnBoot bool              `json:"fetch_on_boot"`
	Headers     map[string]string `json:"headers"`
}

// DefaultScopeEntries describes this service's two attribute exports as PDP
// data sources: users mounted at /smaug, organisations at /org.
func DefaultScopeEntries(selfURL string) []DataSourceEntry {
	get := func(exportPath, dst string) DataSourceEntry {
		return DataSourceEntry{
			URL:                    selfURL + exportPath,
			DstPath:                dst,
			PeriodicUpdateInterval: 60,
			Config: DataSourceConfig{
				Method:      "get",
				FetchOnBoot: true,
				Headers:     map[string]string{"Accept": "application/json"},
			},
		}
	}
	return []DataSourceEntry{
		get("/opal/read_current_db_attributes", "/smaug"),
		get("/opal/read_organization", "/org"),
	}
}

// PushOpalScope replaces the data-source configuration for the entries'
// destination paths.
func (c *Client) PushOpalScope(ctx context.Context, entries []DataSourceEntry) (map[string]any, error) {
	payload := map[string]any{
		"data": map[string]any{"entries": entries},
	}
	return c.doCloudJSON(ctx, http.MethodPut, c.scopePath(), payload)
}

func (c *Client) scopePath() string {
	return fmt.Sprintf("/projects/%s/%s/opal_scope", c.cfg.ProjectID, c.cfg.EnvID)
}

func (c *Client) doCloudJSON(ctx context.Context, method, path string, payload any) (map[string]any, error) {
	var body []byte
	contentType := ""
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", cloudServiceName, err)
		}
		contentType = "application/json"
	}

	status, respBody, _, err := c.cloud.Do(ctx, method, path, contentType, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &upstream.StatusError{Service: cloudServiceName, StatusCode: status, Body: string(respBody)}
	}

	var out map[string]any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", cloudServiceName, err)
	}
	return out, nil
}
