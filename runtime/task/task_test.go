package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusIsTerminal(t *testing.T) {
	testCases := []struct {
		status   Status
		expected bool
	}{
		{StatusCreated, false},
		{StatusRunning, false},
		{StatusPaused, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusStopped, true},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, testCase.status.IsTerminal(), string(testCase.status))
	}
}

func TestTaskTerminalGuard(t *testing.T) {
	aTask := New("open example.com")
	assert.Equal(t, StatusCreated, aTask.Status())
	assert.NotEmpty(t, aTask.ID)

	assert.True(t, aTask.SetStatus(StatusRunning))
	assert.True(t, aTask.SetStatus(StatusStopped))

	// Terminal states admit no further transitions.
	assert.False(t, aTask.SetStatus(StatusRunning))
	assert.False(t, aTask.Fail("late failure"))
	assert.Equal(t, StatusStopped, aTask.Status())
	assert.Empty(t, aTask.Failure())
}

func TestTaskFail(t *testing.T) {
	aTask := New("open example.com")
	assert.True(t, aTask.Fail("engine exploded"))
	assert.Equal(t, StatusFailed, aTask.Status())
	assert.Equal(t, "engine exploded", aTask.Failure())
}
