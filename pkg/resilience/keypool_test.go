package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPool_RoundRobin(t *testing.T) {
	kp := NewKeyPool([]string{"a", "b", "c"})

	var got []string
	for i := 0; i < 4; i++ {
		k, err := kp.Next()
		require.NoError(t, err)
		got = append(got, k)
	}

	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
	assert.Equal(t, 3, kp.Size())
}

func TestKeyPool_SkipsRateLimited(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kp := NewKeyPool([]string{"a", "b"})
	kp.now = func() time.Time { return now }

	kp.MarkRateLimited("a", now.Add(time.Minute))
	for i := 0; i < 3; i++ {
		k, err := kp.Next()
		require.NoError(t, err)
		assert.Equal(t, "b", k)
	}

	now = now.Add(90 * time.Second)
	k, err := kp.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", k)
}

func TestKeyPool_AllLimitedFallsBackToEarliestReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kp := NewKeyPool([]string{"a", "b"})
	kp.now = func() time.Time { return now }

	kp.MarkRateLimited("a", now.Add(2*time.Minute))
	kp.MarkRateLimited("b", now.Add(time.Minute))
	for i := 0; i < 2; i++ {
		k, err := kp.Next()
		require.NoError(t, err)
		assert.Equal(t, "b", k)
	}
}

func TestKeyPool_SingleKeyStaysUsable(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kp := NewKeyPool([]string{"only"})
	kp.now = func() time.Time { return now }

	kp.MarkRateLimited("only", now.Add(time.Minute))
	k, err := kp.Next()
	require.NoError(t, err)
	assert.Equal(t, "only", k)
}

func TestKeyPool_Empty(t *testing.T) {
	_, err := NewKeyPool(nil).Next()
	assert.ErrorIs(t, err, ErrNoKeys)
}
