package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDwellClockFiresWithArmedToken(t *testing.T) {
	fired := make(chan uint64, 1)
	c := NewDwellClock(func(token uint64) { fired <- token })

	token := c.Arm(10 * time.Millisecond)
	select {
	case got := <-fired:
		require.Equal(t, token, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestDwellClockRearmInvalidatesPrevious(t *testing.T) {
	fired := make(chan uint64, 4)
	c := NewDwellClock(func(token uint64) { fired <- token })

	first := c.Arm(time.Hour)
	second := c.Arm(10 * time.Millisecond)
	require.NotEqual(t, first, second)

	select {
	case got := <-fired:
		require.Equal(t, second, got)
	case <-time.After(2 * time.Second):
		t.Fatal("rearmed timer never fired")
	}

	// Only one expiry is ever delivered per arm.
	select {
	case got := <-fired:
		t.Fatalf("unexpected extra expiry with token %d", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDwellClockCancelStopsPending(t *testing.T) {
	fired := make(chan uint64, 1)
	c := NewDwellClock(func(token uint64) { fired <- token })

	armed := c.Arm(50 * time.Millisecond)
	cancelled := c.Cancel()
	require.Greater(t, cancelled, armed, "cancel must invalidate the armed token")

	select {
	case got := <-fired:
		t.Fatalf("cancelled timer fired with token %d", got)
	case <-time.After(300 * time.Millisecond):
	}
	require.Equal(t, cancelled, c.Token())
}

func TestDwellClockLateFireCarriesStaleToken(t *testing.T) {
	fired := make(chan uint64, 1)
	c := NewDwellClock(func(token uint64) { fired <- token })

	armed := c.Arm(10 * time.Millisecond)
	// Cancel may lose the race with the firing goroutine; if the expiry is
	// delivered anyway it must carry the superseded token so the consumer can
	// discard it.
	current := c.Cancel()

	select {
	case got := <-fired:
		require.Equal(t, armed, got)
		require.NotEqual(t, current, got)
	case <-time.After(300 * time.Millisecond):
		// Stop won the race; nothing delivered is also correct.
	}
}
