package core

import "sync/atomic"

// TimerFreq is the core clock rate. One tick is one millisecond; targets
// convert from their hardware counter in UpdateSystemTime.
const TimerFreq = 1000

var (
	systemTicks atomic.Uint32
	bootTime    uint32 // Time at TimerInit for uptime calculation
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return systemTicks.Load()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	systemTicks.Store(ticks)
}

// GetUptime returns ticks elapsed since TimerInit
func GetUptime() uint32 {
	return GetTime() - bootTime
}

// TimerFromMS converts milliseconds to timer ticks
func TimerFromMS(ms uint32) uint32 {
	return ms * TimerFreq / 1000
}

// TimerInit records the boot time
func TimerInit() {
	bootTime = GetTime()
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
