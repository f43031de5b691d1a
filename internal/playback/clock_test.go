package playback

import (
	"reflect"
	"testing"
	"time"
)

func TestManualClockFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(100, 0)
	clock := NewManualClock(start)

	var fired []string
	var firedAt []time.Duration
	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
			firedAt = append(firedAt, clock.Now().Sub(start))
		}
	}

	clock.AfterFunc(300*time.Millisecond, record("c"))
	clock.AfterFunc(100*time.Millisecond, record("a"))
	clock.AfterFunc(100*time.Millisecond, record("b"))
	clock.AfterFunc(time.Second, record("late"))

	clock.Advance(500 * time.Millisecond)

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(fired, want) {
		t.Errorf("fired %v, want %v", fired, want)
	}
	if want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond}; !reflect.DeepEqual(firedAt, want) {
		t.Errorf("fired at %v, want %v", firedAt, want)
	}
	if got := clock.Now().Sub(start); got != 500*time.Millisecond {
		t.Errorf("Now() = +%v, want +500ms", got)
	}
	if clock.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", clock.Pending())
	}
}

func TestManualClockStop(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report the timer was pending")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}

	clock.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestManualClockCallbackArmsWithinWindow(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	count := 0
	var tick func()
	tick = func() {
		count++
		clock.AfterFunc(100*time.Millisecond, tick)
	}
	clock.AfterFunc(100*time.Millisecond, tick)

	clock.Advance(450 * time.Millisecond)
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}
