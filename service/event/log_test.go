package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/webpilot/service/messaging/memory"
)

func TestLogPublishAndHistory(t *testing.T) {
	var handled []string
	aLog := NewLog(WithHandler(func(anEvent *Event) {
		handled = append(handled, anEvent.Type)
	}))
	ctx := context.Background()

	aLog.Publish(ctx, New(TypeInfo, "task started"))
	aLog.Publish(ctx, New(TypeStepStarted, "step 1 started").
		WithData(map[string]interface{}{"stepNumber": 1}))

	events := aLog.Events()
	require.Len(t, events, 2)
	assert.Equal(t, TypeInfo, events[0].Type)
	assert.Equal(t, TypeStepStarted, events[1].Type)
	assert.False(t, events[0].CreatedAt.IsZero())
	assert.Equal(t, 1, events[1].Data["stepNumber"])
	assert.Equal(t, []string{TypeInfo, TypeStepStarted}, handled)
	assert.Equal(t, 2, aLog.Len())
}

func TestLogPublishNeverBlocksWithoutListener(t *testing.T) {
	aLog := NewLog()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Well past the default push-queue buffer.
		for i := 0; i < 150; i++ {
			aLog.Publish(ctx, New(TypeInfo, "tick"))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no listener registered")
	}
	assert.Equal(t, 150, aLog.Len())
	assert.False(t, aLog.Listening())
}

func TestLogSlowListenerDropsInsteadOfBlocking(t *testing.T) {
	aLog := NewLog(WithQueueConfig(memory.Config{QueueBuffer: 1}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	stop := aLog.Listen(ctx, func(anEvent *Event) {
		<-block
	})
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			aLog.Publish(ctx, New(TypeInfo, "tick"))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked behind a slow listener")
	}
	close(block)
	assert.Equal(t, 50, aLog.Len())
}

func TestLogListen(t *testing.T) {
	aLog := NewLog()
	ctx := context.Background()

	var mu sync.Mutex
	var received []string
	stop := aLog.Listen(ctx, func(anEvent *Event) {
		mu.Lock()
		received = append(received, anEvent.Message)
		mu.Unlock()
	})
	defer stop()

	aLog.Publish(ctx, New(TypeUserAction, "action approved"))
	aLog.Publish(ctx, New(TypeUserAction, "task stopped"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"action approved", "task stopped"}, received)
	mu.Unlock()
}
