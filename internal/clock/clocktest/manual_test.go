package clocktest

import (
	"testing"
	"time"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	var fired []string

	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	stopped := c.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Fatalf("expected Stop to report an active timer")
	}
	if stopped.Stop() {
		t.Fatalf("second Stop must report false")
	}

	c.Advance(250 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "early" {
		t.Fatalf("unexpected fire order after 250ms: %v", fired)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", c.Pending())
	}

	c.Advance(time.Second)
	if len(fired) != 2 || fired[1] != "late" {
		t.Fatalf("unexpected fire order: %v", fired)
	}
	if got := c.Now(); !got.Equal(time.Unix(0, 0).Add(1250 * time.Millisecond)) {
		t.Fatalf("unexpected clock time %s", got)
	}
}
