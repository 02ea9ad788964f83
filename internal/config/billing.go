package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the operator-supplied tier schedule used to bootstrap the catalog.
type BillingConfig struct {
	Currency string       `mapstructure:"currency"`
	Tiers    []TierConfig `mapstructure:"tiers"`
}

// TierConfig is one bracket of the configured schedule. UnitPrice is a decimal string.
type TierConfig struct {
	VolumeLimit int64  `mapstructure:"volumeLimit"`
	UnitPrice   string `mapstructure:"unitPrice"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency: "EUR",
		Tiers: []TierConfig{
			{VolumeLimit: 5, UnitPrice: "0.30"},
			{VolumeLimit: 15, UnitPrice: "0.80"},
			{VolumeLimit: 25, UnitPrice: "1.20"},
			{VolumeLimit: 1_000_000, UnitPrice: "1.60"},
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed configuration; used by tests and tools.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("billing.config")

	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/aguas/config")
	v.AddConfigPath("/etc/aguas")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGUAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if fileFound {
		if err := v.UnmarshalKey("billing", &cfg); err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultBillingConfig()
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name), zap.Int("tiers", len(updated.Tiers)))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// ValidateBillingConfig rejects empty schedules, limits that are not strictly
// increasing and unparsable or negative prices.
func ValidateBillingConfig(cfg BillingConfig) error {
	if len(cfg.Tiers) == 0 {
		return errors.New("billing.tiers cannot be empty")
	}
	var previous int64
	for i, tier := range cfg.Tiers {
		if tier.VolumeLimit <= 0 {
			return fmt.Errorf("billing.tiers[%d].volumeLimit must be positive", i)
		}
		if tier.VolumeLimit <= previous {
			return fmt.Errorf("billing.tiers[%d].volumeLimit must be greater than %d", i, previous)
		}
		previous = tier.VolumeLimit
		price, err := decimal.NewFromString(strings.TrimSpace(tier.UnitPrice))
		if err != nil {
			return fmt.Errorf("billing.tiers[%d].unitPrice: %w", i, err)
		}
		if price.IsNegative() {
			return fmt.Errorf("billing.tiers[%d].unitPrice must not be negative", i)
		}
	}
	return nil
}
