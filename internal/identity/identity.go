// Package identity implements the deliberately weak caller identity used by
// this service: the bearer credential is the caller's email, verbatim. There
// is no signature, expiry or issuer to check, so this is not a security
// boundary — the contract is string validation only and must stay that way
// for behavioral parity with the deployed system.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidFormat is returned when the credential cannot be an email.
var ErrInvalidFormat = errors.New("Invalid format (should be an email)")

// Identity is the caller identity extracted from the bearer credential.
type Identity struct {
	Email string
}

// Extract validates the raw bearer credential and wraps it as an email. The
// only check is the presence of "@"; the value is otherwise passed through
// untouched, so Extract(tok).Email == tok for every accepted token.
func Extract(credential string) (Identity, error) {
	if !strings.Contains(credential, "@") {
		return Identity{}, ErrInvalidFormat
	}
	return Identity{Email: credential}, nil
}

type ctxKey struct{}

// ContextWithIdentity stores the caller identity in the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
