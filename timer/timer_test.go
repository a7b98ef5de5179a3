package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	fired := make(chan struct{}, 1)
	m.AddTimer(10*time.Millisecond, 0, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerManager_Repeating(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var count atomic.Int32
	id := m.Every(5*time.Millisecond, func() { count.Add(1) })

	assert.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.RemoveTimer(id))
	assert.False(t, m.RemoveTimer(id))
	assert.Equal(t, 0, m.Len())
}

func TestTimerManager_EarlierTimerWakesLoop(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	m.AddTimer(time.Hour, 0, func() {})
	fired := make(chan struct{}, 1)
	m.AddTimer(5*time.Millisecond, 0, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("earlier timer blocked behind later one")
	}
	assert.Equal(t, 1, m.Len())
}

func TestTimerManager_Stop(t *testing.T) {
	m := NewTimerManager()
	var count atomic.Int32
	m.AddTimer(20*time.Millisecond, 0, func() { count.Add(1) })
	m.Stop()
	m.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}
