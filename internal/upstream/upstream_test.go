package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDoReturnsStatusAndBody(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"detail":"nope"}`))
	}))
	defer srv.Close()

	c := &Caller{Service: "Permit.io", BaseURL: srv.URL, Token: "permit_key_test", HTTP: srv.Client()}
	status, body, _, err := c.Do(context.Background(), http.MethodGet, "/v2/things", "", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if status != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", status)
	}
	if string(body) != `{"detail":"nope"}` {
		t.Fatalf("unexpected body: %s", body)
	}
	if gotAuth != "Bearer permit_key_test" {
		t.Fatalf("credential not injected: %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("accept header missing: %q", gotAccept)
	}
}

func TestDoConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens here anymore

	c := &Caller{
		Service: "Local OPA",
		BaseURL: srv.URL,
		Token:   "permit_key_secret_must_not_leak",
		HTTP:    &http.Client{Timeout: time.Second},
	}
	_, _, _, err := c.Do(context.Background(), http.MethodGet, "/v1/data/smaug", "", nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !strings.Contains(te.Error(), "Local OPA") {
		t.Fatalf("error does not name the target: %v", te)
	}
	if strings.Contains(te.Error(), "permit_key_secret_must_not_leak") {
		t.Fatalf("credential leaked into error: %v", te)
	}
}
