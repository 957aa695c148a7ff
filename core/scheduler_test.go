package core

import "testing"

func resetTimers() {
	timerList = nil
	SetTime(0)
}

func TestTimerDispatchOrder(t *testing.T) {
	resetTimers()
	defer resetTimers()

	var fired []uint32
	handler := func(tm *Timer) uint8 {
		fired = append(fired, tm.WakeTime)
		return SF_DONE
	}
	timers := []*Timer{
		{WakeTime: 30, Handler: handler},
		{WakeTime: 10, Handler: handler},
		{WakeTime: 20, Handler: handler},
	}
	for _, tm := range timers {
		ScheduleTimer(tm)
	}

	SetTime(15)
	ProcessTimers()
	if len(fired) != 1 || fired[0] != 10 {
		t.Fatalf("Expected only the 10 ms timer, got %v", fired)
	}

	SetTime(30)
	ProcessTimers()
	if len(fired) != 3 || fired[1] != 20 || fired[2] != 30 {
		t.Errorf("Expected [10 20 30], got %v", fired)
	}
	if timerList != nil {
		t.Error("Timer list should be empty")
	}
}

func TestTimerReschedule(t *testing.T) {
	resetTimers()
	defer resetTimers()

	count := 0
	tm := &Timer{WakeTime: 5}
	tm.Handler = func(tm *Timer) uint8 {
		count++
		tm.WakeTime += 5
		return SF_RESCHEDULE
	}
	ScheduleTimer(tm)

	for now := uint32(0); now <= 20; now++ {
		SetTime(now)
		ProcessTimers()
	}
	if count != 4 {
		t.Errorf("Expected 4 firings by 20 ms, got %d", count)
	}
}

func TestCancelTimer(t *testing.T) {
	resetTimers()
	defer resetTimers()

	fired := 0
	handler := func(*Timer) uint8 { fired++; return SF_DONE }
	a := &Timer{WakeTime: 1, Handler: handler}
	b := &Timer{WakeTime: 2, Handler: handler}
	ScheduleTimer(a)
	ScheduleTimer(b)

	CancelTimer(b)
	CancelTimer(b) // not queued
	SetTime(10)
	ProcessTimers()
	if fired != 1 {
		t.Errorf("Expected only the remaining timer to fire, got %d", fired)
	}
}

func TestTimerWrap(t *testing.T) {
	resetTimers()
	defer resetTimers()

	fired := false
	SetTime(0xFFFFFFF0)
	ScheduleTimer(&Timer{
		WakeTime: 0x00000010, // past the wrap
		Handler:  func(*Timer) uint8 { fired = true; return SF_DONE },
	})

	ProcessTimers()
	if fired {
		t.Fatal("Timer after wrap fired early")
	}
	SetTime(0x00000010)
	ProcessTimers()
	if !fired {
		t.Error("Timer after wrap did not fire")
	}
}

func TestTimerFromMS(t *testing.T) {
	if got := TimerFromMS(250); got != 250 {
		t.Errorf("Expected 250 ticks, got %d", got)
	}
}
