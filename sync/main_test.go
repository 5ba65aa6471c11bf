package sync

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain uses goleak to verify this package's tests, which exercise
// the Synchronizer's subscriber fan-out, do not leak goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
