package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockNormalizesToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	fake := NewFakeClock(time.Date(2026, 8, 26, 19, 0, 0, 0, est))

	assert.Equal(t, time.UTC, fake.Now().Location())
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), fake.Now())
}

func TestFakeClockAdvanceAndSet(t *testing.T) {
	fake := NewFakeClock(time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC))

	fake.Advance(7 * time.Hour)
	assert.Equal(t, time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC), fake.Now())

	fake.Set(time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC), fake.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystemClock().Now().Location())
}
