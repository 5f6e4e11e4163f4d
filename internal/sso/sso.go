// Package sso defines the contract for exchanging an externally
// authenticated identity for a local principal. Federation itself (SAML,
// OIDC handshakes) is an external collaborator; this core only consumes
// the result of a completed handshake.
package sso

import (
	"context"
	"errors"

	"assesshub/internal/domain"
)

var ErrNotConfigured = errors.New("sso is not configured")

// ExternalIdentity is the provider-asserted identity after a completed
// federation handshake.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Exchanger resolves an external identity to a local principal. The local
// principal may be password-less (Identity.PasswordHash nil).
type Exchanger interface {
	Exchange(ctx context.Context, ext ExternalIdentity) (*domain.Identity, error)
}

// Unconfigured rejects every exchange. Stands in until a federation
// provider is wired.
type Unconfigured struct{}

func (Unconfigured) Exchange(context.Context, ExternalIdentity) (*domain.Identity, error) {
	return nil, ErrNotConfigured
}
