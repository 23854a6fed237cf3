package fsutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumManager_Compute(t *testing.T) {
	m := NewChecksumManager()
	a := m.Compute([]byte("a"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, m.Compute([]byte("a")))
	assert.NotEqual(t, a, m.Compute([]byte("b")))
	// BLAKE3 of the empty input
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", m.Compute(nil))
}

func TestChecksumManager_GetUpdate(t *testing.T) {
	m := NewChecksumManager()
	sum := m.Compute([]byte("hello"))

	_, ok := m.Get("/w/a.txt")
	assert.False(t, ok)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update("/w/a.txt", sum)
			m.Get("/w/a.txt")
		}()
	}
	wg.Wait()

	got, ok := m.Get("/w/a.txt")
	require.True(t, ok)
	assert.Equal(t, sum, got)
}
