package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresToken(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestValidateNormalizesMode(t *testing.T) {
	p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir(), BotToken: "123:abc"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "dev", p.Mode)
}

func TestValidateSQLiteDefaultDSN(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{Mode: "prod", Driver: "sqlite", Data: dir, BotToken: "123:abc"}
	require.NoError(t, p.Validate())
	assert.Equal(t, filepath.Join(dir, "multipinbot_prod.db"), p.DSN)
}

func TestValidateSQLiteKeepsExplicitDSN(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir(), BotToken: "123:abc", DSN: "custom.db"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "custom.db", p.DSN)
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "postgres", BotToken: "123:abc"}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MULTIPINBOT_TELEGRAM_TOKEN", "456:def")
	t.Setenv("MULTIPINBOT_METRICS_ADDR", "127.0.0.1:9090")

	p := &Profile{}
	p.FromEnv()
	assert.Equal(t, "456:def", p.BotToken)
	assert.Equal(t, "127.0.0.1:9090", p.MetricsAddr)

	// Flags win over the environment.
	p = &Profile{BotToken: "flag-token"}
	p.FromEnv()
	assert.Equal(t, "flag-token", p.BotToken)
}

func TestFromEnvLegacyTokenVariable(t *testing.T) {
	t.Setenv("MULTIPINBOT_TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_TOKEN", "789:ghi")

	p := &Profile{}
	p.FromEnv()
	assert.Equal(t, "789:ghi", p.BotToken)
}
