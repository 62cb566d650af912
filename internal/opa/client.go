// Package opa reads data and manages policies on the locally running
// decision point over its REST API. The OPA API has two quirks the generic
// upstream plumbing cannot express: DELETE answers 204 with no body, and
// some 2xx responses are empty or non-JSON. Both are normalised here instead
// of surfacing as false failures.
package opa

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"smaug.org/internal/config"
	"smaug.org/internal/obs"
	"smaug.org/internal/upstream"
)

const serviceName = "Local OPA"

// SmaugPolicyID names the custom policy replaced by the push route.
const SmaugPolicyID = "smaug_ro_hrs_access_policy"

// SmaugRules is the fixed policy document uploaded to the PDP. It resolves
// user attributes out of the /smaug data mount pushed by this service.
//
//go:embed policy/smaug_rules.rego
var SmaugRules string

// Client talks to the local PDP's OPA REST API.
type Client struct {
	caller *upstream.Caller
}

func New(cfg *config.Config, httpClient *http.Client) *Client {
	return &Client{
		caller: &upstream.Caller{
			Service: serviceName,
			BaseURL: cfg.PDPURL,
			Token:   cfg.PermitAPIKey,
			HTTP:    httpClient,
		},
	}
}

// Data reads the document mounted at /v1/data/<path> ("smaug" for user
// attributes, "org" for organisation attributes).
func (c *Client) Data(ctx context.Context, path string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/v1/data/"+path, "", nil)
}

// Policies lists every policy loaded into the decision point.
func (c *Client) Policies(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/v1/policies", "", nil)
}

// DeletePolicy removes a named policy. A 204 comes back as a synthetic
// success body; a 404 or any other status is a StatusError for the caller to
// interpret.
func (c *Client) DeletePolicy(ctx context.Context, id string) (map[string]any, error) {
	return c.do(ctx, http.MethodDelete, "/v1/policies/"+id, "", nil)
}

// PutPolicy uploads policy source text under the given id.
func (c *Client) PutPolicy(ctx context.Context, id, rego string) (map[string]any, error) {
	return c.do(ctx, http.MethodPut, "/v1/policies/"+id, "text/plain", []byte(rego))
}

// ReplacePolicy deletes any existing policy under id and uploads rego in its
// place. A missing policy (404) is the normal first-run case. Other delete
// failures are logged and the put is still attempted — matching the deployed
// behavior, which never aborted on a delete status error. Only a transport
// failure stops the flow.
func (c *Client) ReplacePolicy(ctx context.Context, id, rego string) (map[string]any, error) {
	if _, err := c.DeletePolicy(ctx, id); err != nil {
		var se *upstream.StatusError
		switch {
		case errors.As(err, &se):
			obs.Logger().Warn("policy delete returned non-2xx, continuing with put",
				zap.String("policy_id", id),
				zap.Int("status", se.StatusCode))
		default:
			return nil, err
		}
	}
	return c.PutPolicy(ctx, id, rego)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (map[string]any, error) {
	status, respBody, _, err := c.caller.Do(ctx, method, path, contentType, body)
	if err != nil {
		return nil, err
	}

	// The OPA delete endpoint answers 204; without this the 2xx-with-no-body
	// case would be reported as a failure.
	if status == http.StatusNoContent && method == http.MethodDelete {
		return map[string]any{
			"status":  "success",
			"message": "Delete successful (204 No Content)",
		}, nil
	}

	if status < 200 || status > 299 {
		return nil, &upstream.StatusError{Service: serviceName, StatusCode: status, Body: string(respBody)}
	}

	var out map[string]any
	if err := json.Unmarshal(respBody, &out); err != nil {
		// Empty or non-JSON 2xx body: wrap the raw response instead of
		// failing the request.
		obs.Logger().Warn("non-JSON response from local OPA",
			zap.String("path", path),
			zap.Int("status", status))
		return map[string]any{
			"status_code": status,
			"raw_body":    string(respBody),
		}, nil
	}
	return out, nil
}
