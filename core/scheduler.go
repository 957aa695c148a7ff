package core

// Timer represents a scheduled foreground event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// ScheduleTimer adds a timer to the schedule
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	insertTimer(t)
}

// CancelTimer removes t from the schedule if it is queued
func CancelTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if timerList == t {
		timerList = t.Next
		t.Next = nil
		return
	}
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// insertTimer inserts a timer in sorted order by WakeTime
func insertTimer(t *Timer) {
	if timerList == nil || timeBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && timeBefore(current.Next.WakeTime, t.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// timeBefore compares wrapping tick values
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// TimerDispatch runs due timers. Handlers run with the critical section
// released so they may log and write to the output sink.
func TimerDispatch() {
	for {
		state := disableInterrupts()
		t := timerList
		if t == nil || timeBefore(currentTime, t.WakeTime) {
			restoreInterrupts(state)
			return
		}
		timerList = t.Next
		t.Next = nil // Clear Next pointer to avoid circular references
		restoreInterrupts(state)

		if t.Handler(t) == SF_RESCHEDULE {
			ScheduleTimer(t)
		}
	}
}
