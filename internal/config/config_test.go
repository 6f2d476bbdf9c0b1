package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoq/internal/core/id"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://stoq@localhost/stoq")
	t.Setenv("TIMEZONE", "")
	t.Setenv("STOQ_IMBALANCE_ACCOUNT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "5.102", cfg.Params.DefaultSalesCFOP)
	assert.Equal(t, "1.202", cfg.Params.DefaultReturnSalesCFOP)
	assert.Equal(t, "money", cfg.Params.DefaultPaymentMethod)
	assert.Nil(t, cfg.Params.ImbalanceAccountID)
	assert.Equal(t, defaultBatchSize, cfg.OutboxBatchSize)
	assert.Equal(t, defaultPollInterval, cfg.OutboxPollInterval)
	assert.Equal(t, "postgres://stoq@localhost/stoq", cfg.Pool().DSN)
}

func TestLoadOverrides(t *testing.T) {
	account := id.New()
	t.Setenv("DATABASE_URL", "postgres://stoq@localhost/stoq")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TIMEZONE", "America/Sao_Paulo")
	t.Setenv("STOQ_DEFAULT_SALES_CFOP", "5.405")
	t.Setenv("STOQ_IMBALANCE_ACCOUNT", account.String())
	t.Setenv("STOQ_SALE_PAY_COMMISSION_WHEN_CONFIRMED", "true")
	t.Setenv("STOQ_USE_TRADE_AS_DISCOUNT", "yes")
	t.Setenv("OUTBOX_BATCH_SIZE", "25")
	t.Setenv("OUTBOX_POLL_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.Logger().Development)
	assert.Equal(t, "5.405", cfg.Params.DefaultSalesCFOP)
	require.NotNil(t, cfg.Params.ImbalanceAccountID)
	assert.Equal(t, account, *cfg.Params.ImbalanceAccountID)
	assert.True(t, cfg.Params.SalePayCommissionWhenConfirmed)
	assert.True(t, cfg.Params.UseTradeAsDiscount)
	assert.Equal(t, 25, cfg.OutboxBatchSize)
	assert.Equal(t, time.Minute, cfg.OutboxPollInterval)
	assert.Equal(t, "America/Sao_Paulo", cfg.Pool().Timezone)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://stoq@localhost/stoq")
	t.Setenv("STOQ_IMBALANCE_ACCOUNT", "not-a-uuid")
	_, err = Load()
	assert.ErrorContains(t, err, "STOQ_IMBALANCE_ACCOUNT")

	t.Setenv("STOQ_IMBALANCE_ACCOUNT", "")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "TIMEZONE")
}
