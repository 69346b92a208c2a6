package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv matches guard.TestModeEnv.
const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func readTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(on)
}

// InTestMode reports whether the binaries should return before touching
// Postgres, Redis or the network.
func InTestMode() bool {
	testModeInit.Do(readTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads ODYSSEY_TEST_MODE after the environment changed.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	readTestMode()
}
