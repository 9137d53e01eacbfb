package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherRunsTasksInOrder(t *testing.T) {
	disp := NewDispatcher()
	defer disp.Stop()

	var got []int
	for i := 1; i <= 5; i++ {
		i := i
		disp.Post(func() { got = append(got, i) })
	}

	disp.Call(func() {})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestDispatcherCallObservesState(t *testing.T) {
	disp := NewDispatcher()
	defer disp.Stop()

	counter := 0
	disp.Post(func() { counter++ })
	disp.Post(func() { counter++ })

	var seen int
	disp.Call(func() { seen = counter })
	assert.Equal(t, 2, seen)
}

func TestStoppedDispatcherDoesNotBlock(t *testing.T) {
	disp := NewDispatcher()
	disp.Stop()
	disp.Stop()

	// Both must return promptly instead of hanging on a dead loop.
	disp.Post(func() {})
	disp.Call(func() {})
}
