package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

func TestGetMissingUser(t *testing.T) {
	c := newTestCache(t, Config{})

	_, ok := c.Get("nobody")
	assert.False(t, ok)
}

func TestRememberAccountEventuallyVisible(t *testing.T) {
	c := newTestCache(t, Config{})

	c.RememberAccount("user-1", "Maria", 100.50, "active")

	require.Eventually(t, func() bool {
		rec, ok := c.Get("user-1")
		return ok && rec.Name == "Maria" && rec.Balance == 100.50 && rec.Status == "active"
	}, time.Second, 5*time.Millisecond)
}

func TestAddExchangeKeepsNewestFive(t *testing.T) {
	c := newTestCache(t, Config{})

	for i := 0; i < 8; i++ {
		c.AddExchange("user-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	rec, ok := c.Get("user-1")
	require.True(t, ok)
	require.Len(t, rec.Exchanges, maxExchanges)
	assert.Equal(t, "q3", rec.Exchanges[0].Query)
	assert.Equal(t, "q7", rec.Exchanges[4].Query)
}

func TestAddExchangePreservesAccountFields(t *testing.T) {
	c := newTestCache(t, Config{})

	c.RememberAccount("user-1", "Maria", 42, "active")
	require.Eventually(t, func() bool {
		_, ok := c.Get("user-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	c.AddExchange("user-1", "q", "a")

	rec, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "Maria", rec.Name)
	assert.Len(t, rec.Exchanges, 1)
}

func TestGetReturnsCopy(t *testing.T) {
	c := newTestCache(t, Config{})
	c.AddExchange("user-1", "q", "a")

	rec, ok := c.Get("user-1")
	require.True(t, ok)
	rec.Exchanges[0].Query = "mutated"

	again, _ := c.Get("user-1")
	assert.Equal(t, "q", again.Exchanges[0].Query)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, Config{})
	c.AddExchange("user-1", "q", "a")

	c.Clear("user-1")

	_, ok := c.Get("user-1")
	assert.False(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	c := newTestCache(t, Config{TTL: 20 * time.Millisecond, CleanupInterval: 10 * time.Millisecond})
	c.AddExchange("user-1", "q", "a")

	// A successful Get refreshes the TTL, so wait out the window first.
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("user-1")
	assert.False(t, ok)
}

func TestRememberAccountAfterCloseIsNoop(t *testing.T) {
	c := New(Config{})
	c.Close()

	assert.NotPanics(t, func() {
		c.RememberAccount("user-1", "Maria", 100, "active")
	})
	_, ok := c.Get("user-1")
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Config{})
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}

func TestRememberAccountRacingClose(t *testing.T) {
	c := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RememberAccount("user-1", "Maria", 1, "active")
		}()
	}
	c.Close()
	wg.Wait()
}

func TestConcurrentSameKey(t *testing.T) {
	c := newTestCache(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.AddExchange("user-1", fmt.Sprintf("q%d", i), "a")
			c.RememberAccount("user-1", "Maria", float64(i), "active")
			c.Get("user-1")
		}(i)
	}
	wg.Wait()

	rec, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Len(t, rec.Exchanges, maxExchanges)
}
