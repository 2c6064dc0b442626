package playtest

import "time"

// HTTP status code constants.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	// SettleDrainDelay gives the baseline refresh workers time to
	// absorb the last settlements before rankings are fetched.
	SettleDrainDelay     = 2 * time.Second
	PercentageMultiplier = 100
)
