package navigation

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerRunsLastScheduledOnly(t *testing.T) {
	d := NewDebouncer()
	var first, second atomic.Int32

	d.Schedule("form", 20*time.Millisecond, func() { first.Add(1) })
	d.Schedule("form", 20*time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
	assert.False(t, d.Pending("form"))
}

func TestDebouncerImmediateWhenNoDelay(t *testing.T) {
	d := NewDebouncer()
	ran := false
	d.Schedule("form", 0, func() { ran = true })
	assert.True(t, ran)
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer()
	var calls atomic.Int32
	d.Schedule("form", 20*time.Millisecond, func() { calls.Add(1) })
	assert.True(t, d.Pending("form"))
	d.Cancel("form")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	d := NewDebouncer()
	var a, b atomic.Int32
	d.Schedule("a", 10*time.Millisecond, func() { a.Add(1) })
	d.Schedule("b", 10*time.Millisecond, func() { b.Add(1) })
	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer()
	var calls atomic.Int32
	d.Schedule("form", 10*time.Millisecond, func() { calls.Add(1) })
	d.Stop()
	d.Schedule("form", 0, func() { calls.Add(1) })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
