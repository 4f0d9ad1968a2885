package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute)
	assert.True(t, b.Allow())

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "below threshold stays closed")

	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "success must reset the failure streak")
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := newBreaker(1, 20*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow(), "cooldown allows a probe")
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A half-open failure reopens immediately.
	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestBreaker_ClosesAfterHalfOpenSuccesses(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerState_Strings(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
