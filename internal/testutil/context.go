package testutil

import (
	"context"
	"testing"
	"time"
)

// GetTestContext returns a context bounded by testTimeout and by the test
// binary deadline, whichever comes first.
func GetTestContext(t *testing.T, testTimeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, haveDeadline := t.Deadline()

	switch {
	case !haveDeadline && testTimeout == 0:
		return context.WithCancel(context.Background())
	case haveDeadline && testTimeout == 0:
		return context.WithDeadline(context.Background(), deadline)
	case !haveDeadline:
		return context.WithTimeout(context.Background(), testTimeout)
	default:
		testDeadline := time.Now().Add(testTimeout)
		if testDeadline.Before(deadline) {
			return context.WithDeadline(context.Background(), testDeadline)
		}
		return context.WithDeadline(context.Background(), deadline)
	}
}
