package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/money"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	AllocationMethodProportional = "proportional"
	AllocationMethodEqual        = "equal"
)

// AllocationConfig tunes the reconciliation engine. It is read from
// allocation.yml and may be edited while the process runs.
type AllocationConfig struct {
	DefaultMethod       string `mapstructure:"defaultMethod"`
	SettlementTolerance string `mapstructure:"settlementTolerance"`
	LockTTLSeconds      int    `mapstructure:"lockTTLSeconds"`
}

func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		DefaultMethod:       AllocationMethodProportional,
		SettlementTolerance: money.SettlementTolerance.String(),
		LockTTLSeconds:      30,
	}
}

// Tolerance returns the settlement tolerance as a decimal.
func (c AllocationConfig) Tolerance() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(c.SettlementTolerance))
	if err != nil {
		return money.SettlementTolerance
	}
	return value
}

type AllocationConfigHolder struct {
	current atomic.Value // holds AllocationConfig
}

// NewStaticAllocationConfig returns a holder that never reloads.
func NewStaticAllocationConfig(cfg AllocationConfig) *AllocationConfigHolder {
	holder := &AllocationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewAllocationConfigHolder(appCfg Config, log *zap.Logger) (*AllocationConfigHolder, error) {
	log = log.Named("allocation.config")
	v := viper.New()

	v.SetConfigName("allocation")
	v.SetConfigType("yml")
	if appCfg.AllocationConfigPath != "" {
		v.AddConfigPath(appCfg.AllocationConfigPath)
	}
	v.AddConfigPath("/etc/customsledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CUSTOMSLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAllocationConfig()
	v.SetDefault("allocation.defaultMethod", defaults.DefaultMethod)
	v.SetDefault("allocation.settlementTolerance", defaults.SettlementTolerance)
	v.SetDefault("allocation.lockTTLSeconds", defaults.LockTTLSeconds)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg AllocationConfig
	if err := v.UnmarshalKey("allocation", &cfg); err != nil {
		return nil, err
	}
	if err := validateAllocationConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticAllocationConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AllocationConfig
		if err := v.UnmarshalKey("allocation", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateAllocationConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *AllocationConfigHolder) Get() AllocationConfig {
	if h == nil {
		return DefaultAllocationConfig()
	}
	return h.current.Load().(AllocationConfig)
}

func validateAllocationConfig(cfg AllocationConfig) error {
	switch strings.TrimSpace(cfg.DefaultMethod) {
	case AllocationMethodProportional, AllocationMethodEqual:
	default:
		return errors.New("allocation.defaultMethod must be proportional or equal")
	}
	tolerance, err := decimal.NewFromString(strings.TrimSpace(cfg.SettlementTolerance))
	if err != nil {
		return errors.New("allocation.settlementTolerance must be a decimal")
	}
	if tolerance.IsNegative() || tolerance.IsZero() {
		return errors.New("allocation.settlementTolerance must be positive")
	}
	if cfg.LockTTLSeconds <= 0 {
		return errors.New("allocation.lockTTLSeconds must be positive")
	}
	return nil
}
