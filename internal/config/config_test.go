package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "0.03", cfg.Settlement.FeeRate.String())
	assert.Equal(t, int32(2), cfg.Settlement.MoneyScale)
	assert.Empty(t, cfg.Settlement.FeeAccountId)
	assert.Equal(t, "wager_ledger_events", cfg.Events.KafkaTopic)
	assert.Equal(t, time.Minute, cfg.Server.AuditInterval)
	assert.False(t, cfg.Formance.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://wager@localhost/wager?sslmode=disable")
	t.Setenv("PLATFORM_FEE_RATE", "0.05")
	t.Setenv("FEE_ACCOUNT_ID", "house")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://wager@localhost/wager?sslmode=disable", cfg.Database.Path)
	assert.Equal(t, "0.05", cfg.Settlement.FeeRate.String())
	assert.Equal(t, "house", cfg.Settlement.FeeAccountId)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns, "bad ints fall back to the default")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PLATFORM_FEE_RATE", "three percent"},
		{"PLATFORM_FEE_RATE", "1"},
		{"PLATFORM_FEE_RATE", "-0.01"},
		{"AUDIT_INTERVAL", "often"},
		{"MONEY_SCALE", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
