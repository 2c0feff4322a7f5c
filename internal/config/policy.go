package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PayoutPolicy controls the money side of the distribution job: the monthly
// budget split across 28 days, the cron schedule of the daily run, and how
// long the payout-method catalog may be served from cache.
type PayoutPolicy struct {
	BudgetUSD  int64         `mapstructure:"budgetUsd"`
	Schedule   string        `mapstructure:"schedule"`
	CatalogTTL time.Duration `mapstructure:"catalogTtl"`
	JobTimeout time.Duration `mapstructure:"jobTimeout"`
}

func DefaultPayoutPolicy() PayoutPolicy {
	return PayoutPolicy{
		BudgetUSD:  0,
		Schedule:   "5 0 * * *",
		CatalogTTL: 6 * time.Hour,
		JobTimeout: 10 * time.Minute,
	}
}

// PayoutPolicyHolder serves the current policy and swaps it on config reload.
type PayoutPolicyHolder struct {
	current atomic.Value // holds PayoutPolicy
}

func NewPayoutPolicyHolder() (*PayoutPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("payouts")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/payouts")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYOUTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayoutPolicy()
	v.SetDefault("payouts.budgetUsd", defaults.BudgetUSD)
	v.SetDefault("payouts.schedule", defaults.Schedule)
	v.SetDefault("payouts.catalogTtl", defaults.CatalogTTL)
	v.SetDefault("payouts.jobTimeout", defaults.JobTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy PayoutPolicy
	if err := v.UnmarshalKey("payouts", &policy); err != nil {
		return nil, err
	}
	if err := validatePayoutPolicy(policy); err != nil {
		return nil, err
	}

	holder := &PayoutPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutPolicy
		if err := v.UnmarshalKey("payouts", &updated); err != nil {
			log.Printf("[payout-policy] reload failed: %v", err)
			return
		}
		if err := validatePayoutPolicy(updated); err != nil {
			log.Printf("[payout-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[payout-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPayoutPolicyHolder wraps a fixed policy without file watching, for
// embedding and tests.
func NewStaticPayoutPolicyHolder(policy PayoutPolicy) *PayoutPolicyHolder {
	holder := &PayoutPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *PayoutPolicyHolder) Get() PayoutPolicy {
	return h.current.Load().(PayoutPolicy)
}

func validatePayoutPolicy(policy PayoutPolicy) error {
	if policy.BudgetUSD < 0 {
		return errors.New("payouts.budgetUsd cannot be negative")
	}
	if strings.TrimSpace(policy.Schedule) == "" {
		return errors.New("payouts.schedule cannot be empty")
	}
	if policy.CatalogTTL <= 0 {
		return errors.New("payouts.catalogTtl must be positive")
	}
	if policy.JobTimeout <= 0 {
		return errors.New("payouts.jobTimeout must be positive")
	}
	return nil
}
