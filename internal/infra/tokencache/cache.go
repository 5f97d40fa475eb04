// Package tokencache holds issued video tokens in process memory.
package tokencache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/metrics"
	"filmstream/internal/infra/scheduler"
)

var _ repository.VideoTokenStore = (*Cache)(nil)

// DefaultSweepInterval is how often expired tokens are dropped.
const DefaultSweepInterval = 30 * time.Minute

// Cache is a token store with a background sweeper. Entries live until they
// expire and a sweep runs, or until they are deleted.
type Cache struct {
	mu     sync.RWMutex
	tokens map[string]model.VideoAccessToken

	now       func() time.Time
	logger    *zerolog.Logger
	sweep     *scheduler.Scheduler
	schedOpts []scheduler.Option
}

type Option func(*Cache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithSchedulerOptions is passed through to the sweeper.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *Cache) { c.schedOpts = append(c.schedOpts, opts...) }
}

// New builds a Cache. The sweeper is not running until Start.
func New(interval time.Duration, logger *zerolog.Logger, opts ...Option) *Cache {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	l := logger.With().Str("component", "TokenCache").Logger()
	c := &Cache{
		tokens: make(map[string]model.VideoAccessToken),
		now:    time.Now,
		logger: &l,
	}
	for _, o := range opts {
		o(c)
	}
	c.sweep = scheduler.NewScheduler("video_token_gc", interval, func(ctx context.Context) error {
		c.Sweep(c.now())
		return nil
	}, logger, c.schedOpts...)
	return c
}

// Start launches the periodic sweep.
func (c *Cache) Start(ctx context.Context) { c.sweep.Start(ctx) }

// Stop halts the sweeper. Cached tokens are kept.
func (c *Cache) Stop() { c.sweep.Stop() }

func (c *Cache) Put(tok model.VideoAccessToken) {
	c.mu.Lock()
	c.tokens[tok.TokenID] = tok
	n := len(c.tokens)
	c.mu.Unlock()
	metrics.SetVideoTokensActive(n)
}

func (c *Cache) Get(tokenID string) (model.VideoAccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[tokenID]
	return tok, ok
}

// Extend moves the expiry of a known token. It reports false for unknown ids.
func (c *Cache) Extend(tokenID string, expiresAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[tokenID]
	if !ok {
		return false
	}
	tok.ExpiresAt = expiresAt
	c.tokens[tokenID] = tok
	return true
}

func (c *Cache) Delete(tokenID string) {
	c.mu.Lock()
	delete(c.tokens, tokenID)
	n := len(c.tokens)
	c.mu.Unlock()
	metrics.SetVideoTokensActive(n)
}

// Sweep removes every token expired at now and returns how many went.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	removed := 0
	for id, tok := range c.tokens {
		if !now.Before(tok.ExpiresAt) {
			delete(c.tokens, id)
			removed++
		}
	}
	n := len(c.tokens)
	c.mu.Unlock()

	metrics.SetVideoTokensActive(n)
	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Int("remaining", n).Msg("expired video tokens swept")
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}
