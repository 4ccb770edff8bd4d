package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryit/pkg/config"
	"tryit/pkg/logger"
)

func TestEnvSourceWorkspaceScopedOverridesGlobal(t *testing.T) {
	t.Setenv("AUTH_CLIENT_ID", "global-id")
	t.Setenv("AUTH_CLIENT_SECRET", "global-secret")
	t.Setenv("acme_AUTH_CLIENT_ID", "client-acme")
	t.Setenv("acme_AUTH_CLIENT_SECRET", "s3cret")
	t.Setenv("AUTH_TOKEN_URL", "https://idp.example/token")

	creds, err := NewEnvSource().Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", creds.Workspace)
	assert.Equal(t, "client-acme", creds.ClientID)
	assert.Equal(t, "s3cret", creds.ClientSecret)
	assert.Equal(t, "https://idp.example/token", creds.TokenURL)
}

func TestEnvSourceLowercasesWorkspacePrefix(t *testing.T) {
	t.Setenv("acme_AUTH_CLIENT_ID", "client-acme")
	t.Setenv("acme_AUTH_CLIENT_SECRET", "s3cret")

	creds, err := NewEnvSource().Resolve(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "client-acme", creds.ClientID)
}

func TestEnvSourceMissingSecretIsAMiss(t *testing.T) {
	t.Setenv("acme_AUTH_CLIENT_ID", "client-acme")

	_, err := NewEnvSource().Resolve(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainFillsDefaultsAndFailsClosed(t *testing.T) {
	t.Setenv("acme_AUTH_CLIENT_ID", "client-acme")
	t.Setenv("acme_AUTH_CLIENT_SECRET", "s3cret")

	cfg := config.Config{
		TokenURL:        "https://auth.internal/token",
		APIBaseURL:      "https://api.internal",
		FlowIDNerv:      "flow-nerv",
		FlowIDRecurring: "flow-rec",
	}
	chain := NewChain(cfg, logger.Nop(), NewEnvSource())

	creds, err := chain.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.internal/token", creds.TokenURL)
	assert.Equal(t, "https://api.internal", creds.APIBaseURL)
	assert.Equal(t, "flow-nerv", creds.FlowIDs.Nerv)
	assert.Equal(t, "flow-rec", creds.FlowIDs.Recurring)

	_, err = chain.Resolve(context.Background(), "nobody")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nobody", nf.Workspace)
}

func TestChainEmptyFlowIDsAreNotFatal(t *testing.T) {
	t.Setenv("acme_AUTH_CLIENT_ID", "client-acme")
	t.Setenv("acme_AUTH_CLIENT_SECRET", "s3cret")

	chain := NewChain(config.Config{}, logger.Nop(), NewEnvSource())
	creds, err := chain.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Empty(t, creds.FlowIDs.Nerv)
	assert.Empty(t, creds.FlowIDs.Recurring)
	// URL fields never come back empty; fixed defaults kick in last.
	assert.Equal(t, config.DefaultTokenURL, creds.TokenURL)
	assert.Equal(t, config.DefaultAPIBaseURL, creds.APIBaseURL)
}
