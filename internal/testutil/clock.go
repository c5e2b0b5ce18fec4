package testutil

import (
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
)

// Epoch is the instant test clocks start at. Deployment folders created at
// Epoch are named 1716219104359-2024-05-20T15:31:44.359Z.
var Epoch = time.Date(2024, 5, 20, 15, 31, 44, 359_000_000, time.UTC)

// NewClock returns a fake clock at Epoch.
//
// Tests advance it with Increment between deploys so every deploy writes a
// distinct, ordered folder.
func NewClock() *fakeclock.FakeClock {
	return fakeclock.NewFakeClock(Epoch)
}
