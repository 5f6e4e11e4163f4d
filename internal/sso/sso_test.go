package sso

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnconfigured_RejectsExchange(t *testing.T) {
	var ex Exchanger = Unconfigured{}

	identity, err := ex.Exchange(context.Background(), ExternalIdentity{
		Provider: "okta",
		Subject:  "ext-123",
		Email:    "user@example.com",
	})

	assert.Nil(t, identity)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
