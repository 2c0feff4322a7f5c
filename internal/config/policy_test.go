package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPayoutPolicy(t *testing.T) {
	policy := DefaultPayoutPolicy()

	assert.Equal(t, "5 0 * * *", policy.Schedule)
	assert.Equal(t, 6*time.Hour, policy.CatalogTTL)
	assert.Equal(t, 10*time.Minute, policy.JobTimeout)
	assert.NoError(t, validatePayoutPolicy(policy))
}

func TestValidatePayoutPolicy(t *testing.T) {
	base := DefaultPayoutPolicy()

	negative := base
	negative.BudgetUSD = -1
	assert.Error(t, validatePayoutPolicy(negative))

	noSchedule := base
	noSchedule.Schedule = "  "
	assert.Error(t, validatePayoutPolicy(noSchedule))

	noTTL := base
	noTTL.CatalogTTL = 0
	assert.Error(t, validatePayoutPolicy(noTTL))

	noTimeout := base
	noTimeout.JobTimeout = 0
	assert.Error(t, validatePayoutPolicy(noTimeout))
}

func TestStaticHolderServesItsPolicy(t *testing.T) {
	policy := DefaultPayoutPolicy()
	policy.BudgetUSD = 25000

	holder := NewStaticPayoutPolicyHolder(policy)
	assert.Equal(t, policy, holder.Get())
}
