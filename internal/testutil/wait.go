package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// WaitForCondition waits for a condition to be true, checking every 10ms
// Returns true if condition met, false if timeout
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// RequireEventually asserts that a condition becomes true within timeout and fails the test if not
func RequireEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	require.True(t, WaitForCondition(t, timeout, condition), "Condition not met within %v: %s", timeout, msg)
}

// WaitForCount waits for a count function to return the expected number
func WaitForCount(t *testing.T, timeout time.Duration, counter func() int, expected int) {
	t.Helper()
	RequireEventually(t, timeout, func() bool {
		return counter() == expected
	}, "expected count reached")
}
