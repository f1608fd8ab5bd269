package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeFiresInDueOrder(t *testing.T) {
	c := NewFake(epoch)

	var fired []string
	var firedAt []time.Time
	c.Schedule(3*time.Second, func() { fired = append(fired, "c"); firedAt = append(firedAt, c.Now()) })
	c.Schedule(1*time.Second, func() { fired = append(fired, "a"); firedAt = append(firedAt, c.Now()) })
	c.Schedule(2*time.Second, func() { fired = append(fired, "b"); firedAt = append(firedAt, c.Now()) })

	c.Advance(2 * time.Second)
	require.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, epoch.Add(time.Second), firedAt[0])
	assert.Equal(t, epoch.Add(2*time.Second), firedAt[1])
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Hour)
	require.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, epoch.Add(time.Hour+2*time.Second), c.Now())
}

func TestFakeCancel(t *testing.T) {
	c := NewFake(epoch)

	called := false
	h := c.Schedule(time.Second, func() { called = true })

	assert.True(t, c.Cancel(h))
	assert.False(t, c.Cancel(h))

	c.Advance(time.Minute)
	assert.False(t, called)
	assert.Zero(t, c.Pending())
}

func TestFakeCallbackCanReschedule(t *testing.T) {
	c := NewFake(epoch)

	count := 0
	var tick func()
	tick = func() {
		count++
		c.Schedule(time.Second, tick)
	}
	c.Schedule(time.Second, tick)

	c.Advance(5 * time.Second)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, c.Pending())
}

func TestFakeNegativeDelayFiresOnNextAdvance(t *testing.T) {
	c := NewFake(epoch)

	called := false
	c.Schedule(-time.Second, func() { called = true })
	c.Advance(0)

	assert.True(t, called)
	assert.Equal(t, epoch, c.Now())
}

func TestRealScheduleAndCancel(t *testing.T) {
	c := NewReal()

	done := make(chan struct{})
	c.Schedule(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	h := c.Schedule(time.Hour, func() { t.Error("cancelled timer fired") })
	assert.True(t, c.Cancel(h))
	assert.False(t, c.Cancel(h))
}
