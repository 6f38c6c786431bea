// Package coordinator maintains one authoritative cached snapshot of a
// Remo account and keeps it fresh without redundant concurrent network
// calls. It is the sole mutator of the cache: background scheduled
// refreshes and forced refreshes collapse onto a single network fetch, and
// subscribers are notified synchronously after every successful update.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"remobridge/internal/clock"
	"remobridge/internal/remo"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// MinInterval is the floor for the poll interval. Configurations below
	// it are rejected at construction, not clamped.
	MinInterval = 10 * time.Second

	// DefaultInterval applies when no interval is configured
	DefaultInterval = 60 * time.Second
)

// ErrNotFound indicates the requested id is absent from the latest snapshot
var ErrNotFound = errors.New("not present in latest snapshot")

// ErrRefresh wraps any fetch failure during a forced refresh
var ErrRefresh = errors.New("refresh failed")

// Listener is invoked with no arguments after every successful refresh or
// command merge. It re-reads the cache by its own id.
type Listener func()

// Subscription represents an active listener registration
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id int
	c  *Coordinator
}

func (s *subscription) Unsubscribe() {
	s.c.unsubscribe(s.id)
}

// Coordinator owns the cached account snapshot
type Coordinator struct {
	client   remo.Client
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	flight singleflight.Group

	mu          sync.RWMutex
	state       *remo.State
	lastRefresh time.Time

	subsMu sync.RWMutex
	subs   map[int]Listener
	nextID int
}

// New creates a coordinator for one account. interval zero selects
// DefaultInterval; anything below MinInterval is rejected.
func New(client remo.Client, interval time.Duration, clk clock.Clock, logger *zap.Logger) (*Coordinator, error) {
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		return nil, fmt.Errorf("poll interval %s is below the %s minimum", interval, MinInterval)
	}

	return &Coordinator{
		client:   client,
		interval: interval,
		clock:    clk,
		logger:   logger,
		subs:     make(map[int]Listener),
	}, nil
}

// Interval returns the configured poll interval
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// Start performs an initial blocking refresh and then begins the periodic
// background refresh. The loop stops when ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	if _, err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}

	c.logger.Info("Starting scheduled refresh",
		zap.Duration("interval", c.interval))

	go c.run(ctx)
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping scheduled refresh")
			return
		case <-c.clock.After(c.interval):
			// A failed tick keeps the stale snapshot and keeps ticking.
			// Fixed-interval retry, no backoff.
			if _, err := c.Refresh(ctx); err != nil {
				c.logger.Warn("Scheduled refresh failed, keeping cached state",
					zap.Error(err))
			}
		}
	}
}

// Refresh forces an immediate fetch. Concurrent callers while a refresh is
// in flight join it and receive the same resulting snapshot or the same
// error. Subscribers are notified before any caller returns.
func (c *Coordinator) Refresh(ctx context.Context) (*remo.State, error) {
	v, err, _ := c.flight.Do("refresh", func() (interface{}, error) {
		state, err := c.client.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRefresh, err)
		}

		c.mu.Lock()
		c.state = state
		c.lastRefresh = c.clock.Now()
		c.mu.Unlock()

		c.notify()
		return state, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*remo.State), nil
}

// State returns the current snapshot, nil before the first successful refresh
func (c *Coordinator) State() *remo.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastRefresh returns when the cache was last replaced by a fetch
func (c *Coordinator) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Appliance looks up an appliance in the latest snapshot
func (c *Coordinator) Appliance(id string) (*remo.Appliance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != nil {
		if a, ok := c.state.Appliances[id]; ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("appliance %s: %w", id, ErrNotFound)
}

// Device looks up a device in the latest snapshot
func (c *Coordinator) Device(id string) (*remo.Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != nil {
		if d, ok := c.state.Devices[id]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
}

// MergeApplianceSettings replaces the settings sub-record of one appliance
// with the response of a command, without a full refresh. Other appliances
// keep their cached state until the next tick.
func (c *Coordinator) MergeApplianceSettings(id string, settings *remo.AirconSettings) error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return fmt.Errorf("appliance %s: %w", id, ErrNotFound)
	}
	current, ok := c.state.Appliances[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("appliance %s: %w", id, ErrNotFound)
	}

	updated := *current
	updated.Settings = settings

	next := c.state.Clone()
	next.Appliances[id] = &updated
	c.state = next
	c.mu.Unlock()

	c.notify()
	return nil
}

// Subscribe registers a listener and returns a handle that deregisters it.
// Invocation order across listeners is unspecified.
func (c *Coordinator) Subscribe(fn Listener) Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return &subscription{id: id, c: c}
}

func (c *Coordinator) unsubscribe(id int) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, id)
}

func (c *Coordinator) notify() {
	c.subsMu.RLock()
	listeners := make([]Listener, 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.subsMu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
