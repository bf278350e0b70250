package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNotificationLog_EvictsOldest(t *testing.T) {
	log := NewNotificationLog(2)

	log.Notify(Notification{LineItemID: "a", Message: "first"})
	log.Notify(Notification{LineItemID: "b", Message: "second"})
	log.Notify(Notification{LineItemID: "c", Message: "third"})

	recent := log.Recent()
	assert.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message)
	assert.Equal(t, "third", recent[1].Message)
}

func TestNotificationLog_MinimumLimit(t *testing.T) {
	log := NewNotificationLog(0)

	log.Notify(Notification{Message: "one"})
	log.Notify(Notification{Message: "two"})

	assert.Equal(t, 1, log.Len())
	assert.Equal(t, "two", log.Recent()[0].Message)
}

func TestNotificationLog_ConcurrentNotify(t *testing.T) {
	log := NewNotificationLog(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log.Notify(Notification{LineItemID: fmt.Sprint(n), At: time.Now()})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, log.Len())
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "User message from upstream",
			err:      &userError{msg: "out of stock"},
			expected: "Could not update quantity: out of stock",
		},
		{
			name:     "Wrapped user message",
			err:      fmt.Errorf("patch failed: %w", &userError{msg: "limit is 10"}),
			expected: "Could not update quantity: limit is 10",
		},
		{
			name:     "Empty user message",
			err:      &userError{},
			expected: "Could not update quantity. Please try again.",
		},
		{
			name:     "Plain error",
			err:      errors.New("dial tcp: connection refused"),
			expected: "Could not update quantity. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, failureMessage(tt.err))
		})
	}
}

func TestLogNotifier_DoesNotPanic(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	assert.NotPanics(t, func() {
		n.Notify(Notification{LineItemID: "a", Message: "failed", At: time.Now()})
	})
}
