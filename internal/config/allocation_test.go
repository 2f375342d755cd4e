package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAllocationConfigDefaultsWhenFileMissing(t *testing.T) {
	holder, err := NewAllocationConfigHolder(Config{AllocationConfigPath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, AllocationMethodProportional, cfg.DefaultMethod)
	assert.True(t, cfg.Tolerance().Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, 30, cfg.LockTTLSeconds)
}

func TestAllocationConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("allocation:\n  defaultMethod: equal\n  settlementTolerance: \"0.005\"\n  lockTTLSeconds: 10\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "allocation.yml"), body, 0o600))

	holder, err := NewAllocationConfigHolder(Config{AllocationConfigPath: dir}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, AllocationMethodEqual, cfg.DefaultMethod)
	assert.True(t, cfg.Tolerance().Equal(decimal.RequireFromString("0.005")))
	assert.Equal(t, 10, cfg.LockTTLSeconds)
}

func TestAllocationConfigRejectsUnknownMethod(t *testing.T) {
	dir := t.TempDir()
	body := []byte("allocation:\n  defaultMethod: weighted\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "allocation.yml"), body, 0o600))

	_, err := NewAllocationConfigHolder(Config{AllocationConfigPath: dir}, zap.NewNop())
	assert.Error(t, err)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *AllocationConfigHolder
	assert.Equal(t, DefaultAllocationConfig(), holder.Get())
}

func TestDefaultToleranceMatchesSettlementTolerance(t *testing.T) {
	cfg := DefaultAllocationConfig()
	assert.Equal(t, "0.01", cfg.SettlementTolerance)
	assert.True(t, cfg.Tolerance().Equal(money.SettlementTolerance))

	broken := AllocationConfig{SettlementTolerance: "cent"}
	assert.True(t, broken.Tolerance().Equal(money.SettlementTolerance))
}
