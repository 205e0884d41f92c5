package source

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_cube/internal/motion"
)

func TestMockSource_DeliversSamples(t *testing.T) {
	src := NewMockSource()
	require.True(t, src.Available())

	var mu sync.Mutex
	var got []motion.Sample
	sub, err := src.Subscribe(200, func(s motion.Sample, err error) {
		require.NoError(t, err)
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for mock samples")
		case <-time.After(5 * time.Millisecond):
		}
	}
	sub.Cancel()

	mu.Lock()
	defer mu.Unlock()
	// Timestamps are monotonic and orientations are unit quaternions.
	for i, s := range got {
		assert.InDelta(t, 1.0, s.Orientation.Norm(), 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, s.Timestamp, got[i-1].Timestamp)
		}
	}

	q, ok := src.CurrentOrientation()
	assert.True(t, ok)
	assert.InDelta(t, 1.0, q.Norm(), 1e-9)
}

func TestMockSource_NoCallbackAfterCancelReturns(t *testing.T) {
	src := NewMockSource()

	var mu sync.Mutex
	count := 0
	sub, err := src.Subscribe(500, func(motion.Sample, error) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	sub.Cancel()

	mu.Lock()
	after := count
	mu.Unlock()

	// Cancel waits for the producer goroutine, so the count is frozen.
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, count)
}

func TestMockSource_CancelTwiceIsSafe(t *testing.T) {
	src := NewMockSource()
	sub, err := src.Subscribe(100, func(motion.Sample, error) {})
	require.NoError(t, err)
	sub.Cancel()
	sub.Cancel()
}

func TestMockSource_NoOrientationBeforeFirstSample(t *testing.T) {
	src := NewMockSource()
	_, ok := src.CurrentOrientation()
	assert.False(t, ok)
}
