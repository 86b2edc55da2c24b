package lock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payout-network/payoutd/pkg/lock"
)

func TestGuard(t *testing.T) {
	guard := lock.NewGuard()

	require.True(t, guard.Acquire("job", time.Minute))
	require.False(t, guard.Acquire("job", time.Minute))

	// other jobs are independent
	require.True(t, guard.Acquire("other", time.Minute))

	guard.Release("job")
	require.True(t, guard.Acquire("job", time.Minute))
}

func TestGuardAutoRelease(t *testing.T) {
	guard := lock.NewGuard()

	require.True(t, guard.Acquire("job", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	// the previous run exceeded its timeout and counts as crashed
	require.True(t, guard.Acquire("job", time.Millisecond))
}

func TestGuardZeroTimeoutNeverAutoReleases(t *testing.T) {
	guard := lock.NewGuard()

	require.True(t, guard.Acquire("job", 0))
	time.Sleep(2 * time.Millisecond)
	require.False(t, guard.Acquire("job", 0))
}
