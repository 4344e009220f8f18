// Package session keeps a short-lived per-user cache of last-known account
// facts and recent exchanges. Cached values personalize replies; they are
// never authoritative; account answers always re-fetch live data.
package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

const maxExchanges = 5

type Config struct {
	TTL             time.Duration `split_words:"true" default:"30m"`
	CleanupInterval time.Duration `split_words:"true" default:"5m"`
	WriteQueueSize  int           `envconfig:"WRITE_QUEUE_SIZE" split_words:"true" default:"64"`
}

// Exchange is one query/response pair kept for conversational context.
type Exchange struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the cached per-user snapshot. Callers receive copies.
type Record struct {
	Name      string
	Balance   float64
	Status    string
	Exchanges []Exchange
}

type accountWrite struct {
	userID  string
	name    string
	balance float64
	status  string
}

// Cache is shared across concurrent requests; a single mutex guards every
// read-modify-write. Account write-backs go through a bounded queue drained
// by a background goroutine so a slow write never delays a response.
type Cache struct {
	mu     sync.Mutex
	store  *gocache.Cache
	writes chan accountWrite
	done   chan struct{}
	closed bool
	log    zerolog.Logger
	now    func() time.Time
}

func New(cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	queueSize := cfg.WriteQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	c := &Cache{
		store:  gocache.New(ttl, cleanup),
		writes: make(chan accountWrite, queueSize),
		done:   make(chan struct{}),
		log:    logx.Component("session"),
		now:    time.Now,
	}
	go c.drain()
	return c
}

// Get returns a copy of the user's record, refreshing its TTL.
func (c *Cache) Get(userID string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.get(userID)
	if !ok {
		return Record{}, false
	}
	c.store.SetDefault(userID, rec)
	return copyRecord(rec), true
}

// RememberAccount enqueues an account snapshot write-back. It never blocks:
// when the queue is full the write is dropped and logged, and after Close it
// is a no-op rather than a send on a closed channel.
func (c *Cache) RememberAccount(userID, name string, balance float64, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.writes <- accountWrite{userID: userID, name: name, balance: balance, status: status}:
	default:
		c.log.Warn().Str("user_id", userID).Msg("session write queue full, dropping account snapshot")
	}
}

// AddExchange appends a query/response pair, keeping the newest entries.
func (c *Cache) AddExchange(userID, query, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, _ := c.get(userID)
	rec.Exchanges = append(rec.Exchanges, Exchange{
		Query:     query,
		Response:  response,
		Timestamp: c.now(),
	})
	if n := len(rec.Exchanges); n > maxExchanges {
		rec.Exchanges = rec.Exchanges[n-maxExchanges:]
	}
	c.store.SetDefault(userID, rec)
}

// Clear removes a user's record.
func (c *Cache) Clear(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(userID)
}

// Close stops the write-back goroutine after draining pending writes.
// Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.writes)
	<-c.done
}

func (c *Cache) drain() {
	defer close(c.done)
	for w := range c.writes {
		c.apply(w)
	}
}

func (c *Cache) apply(w accountWrite) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, _ := c.get(w.userID)
	rec.Name = w.name
	rec.Balance = w.balance
	rec.Status = w.status
	c.store.SetDefault(w.userID, rec)
}

// get must be called with the mutex held.
func (c *Cache) get(userID string) (Record, bool) {
	v, ok := c.store.Get(userID)
	if !ok {
		return Record{}, false
	}
	rec, ok := v.(Record)
	return rec, ok
}

func copyRecord(rec Record) Record {
	out := rec
	out.Exchanges = append([]Exchange(nil), rec.Exchanges...)
	return out
}
