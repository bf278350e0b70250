// Package coordinator serialises and coalesces cart quantity changes so that
// each line item has at most one update in flight and only the latest
// requested quantity is ever sent.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cartsync/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyResponse is reported when the cart service answers without a cart.
var ErrEmptyResponse = errors.New("cart service returned an empty response")

// CartService is the authoritative cart backend.
type CartService interface {
	// UpdateQuantity sets the quantity of a line item and returns the full cart.
	UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (*model.CartSnapshot, error)

	// FetchCart reads the current cart.
	FetchCart(ctx context.Context) (*model.CartSnapshot, error)
}

// Scheduler runs a drain. The default starts a goroutine.
type Scheduler func(task func())

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRequestTimeout bounds every update and reconciliation call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.requestTimeout = d }
}

// WithCoalesceWindow delays each send so that changes arriving within d are
// folded into it.
func WithCoalesceWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.coalesceWindow = d }
}

// WithClock overrides the clock used to stamp pending updates.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithScheduler overrides how drains are started. The scheduler may run the
// task on the calling goroutine; RequestQuantityChange then blocks until the
// drain finishes.
func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) { c.schedule = s }
}

// Coordinator owns the update queues for one cart session.
type Coordinator struct {
	svc      CartService
	notifier Notifier
	logger   zerolog.Logger

	now            func() time.Time
	schedule       Scheduler
	requestTimeout time.Duration
	coalesceWindow time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	reconcile singleflight.Group

	mu         sync.Mutex
	queues     map[string][]model.PendingUpdate
	draining   map[string]struct{}
	idle       chan struct{}
	snapshot   model.CartSnapshot
	subs       map[int]chan model.CartSnapshot
	nextSub    int
	fetchSeq   uint64
	appliedSeq uint64
	closed     bool
}

// New creates a coordinator. Call Close when the cart session ends.
func New(svc CartService, notifier Notifier, logger zerolog.Logger, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	c := &Coordinator{
		svc:      svc,
		notifier: notifier,
		logger:   logger.With().Str("component", "quantity-coordinator").Logger(),
		now:      time.Now,
		schedule: func(task func()) { go task() },
		ctx:      ctx,
		cancel:   cancel,
		queues:   make(map[string][]model.PendingUpdate),
		draining: make(map[string]struct{}),
		idle:     idle,
		subs:     make(map[int]chan model.CartSnapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(logger)
	}

	return c
}

// RequestQuantityChange queues a quantity change for a line item and returns
// immediately. Negative quantities are ignored.
func (c *Coordinator) RequestQuantityChange(lineItemID string, quantity int) {
	if quantity < 0 {
		c.logger.Debug().
			Str("line_item_id", lineItemID).
			Int("quantity", quantity).
			Msg("ignoring negative quantity")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.queues[lineItemID] = append(c.queues[lineItemID], model.PendingUpdate{
		Quantity:   quantity,
		EnqueuedAt: c.now(),
	})

	if _, ok := c.draining[lineItemID]; ok {
		c.mu.Unlock()
		return
	}

	if len(c.draining) == 0 {
		c.idle = make(chan struct{})
	}
	c.draining[lineItemID] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	// The draining mark is already set, so the task may run inline.
	c.schedule(func() { c.drain(lineItemID) })
}

// drain sends the latest queued quantity for the line item until its queue is
// empty. Only one drain per line item exists at a time.
func (c *Coordinator) drain(lineItemID string) {
	defer c.wg.Done()

	for {
		if c.coalesceWindow > 0 {
			select {
			case <-time.After(c.coalesceWindow):
			case <-c.ctx.Done():
			}
		}

		update, coalesced, ok := c.takeLatest(lineItemID)
		if !ok {
			return
		}

		c.send(lineItemID, update, coalesced)
	}
}

// takeLatest empties the queue and returns its last entry. When the queue is
// already empty the drain is released.
func (c *Coordinator) takeLatest(lineItemID string) (model.PendingUpdate, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.queues[lineItemID]
	delete(c.queues, lineItemID)

	if len(queue) == 0 || c.ctx.Err() != nil {
		delete(c.draining, lineItemID)
		if len(c.draining) == 0 {
			close(c.idle)
		}
		return model.PendingUpdate{}, 0, false
	}

	return queue[len(queue)-1], len(queue), true
}

func (c *Coordinator) send(lineItemID string, update model.PendingUpdate, coalesced int) {
	logger := c.logger.With().
		Str("line_item_id", lineItemID).
		Int("quantity", update.Quantity).
		Logger()

	logger.Debug().
		Int("coalesced", coalesced).
		Dur("queued_for", c.now().Sub(update.EnqueuedAt)).
		Msg("sending quantity update")

	ctx, cancel := c.requestContext()
	snapshot, err := c.svc.UpdateQuantity(ctx, lineItemID, update.Quantity)
	cancel()

	if err == nil && snapshot == nil {
		err = ErrEmptyResponse
	}

	if err != nil {
		if c.ctx.Err() != nil {
			logger.Debug().Err(err).Msg("coordinator closed during update")
			return
		}
		c.handleFailure(lineItemID, update, err)
		return
	}

	c.replace(*snapshot)

	logger.Debug().Msg("quantity update applied")
}

// handleFailure reports the failure once, drops updates that were queued
// behind the failed one, and reloads the cart from the service.
func (c *Coordinator) handleFailure(lineItemID string, update model.PendingUpdate, err error) {
	c.mu.Lock()
	discarded := len(c.queues[lineItemID])
	delete(c.queues, lineItemID)
	failedAt := c.fetchSeq
	c.mu.Unlock()

	c.logger.Warn().
		Err(err).
		Str("line_item_id", lineItemID).
		Int("quantity", update.Quantity).
		Int("discarded", discarded).
		Msg("quantity update failed, reconciling cart")

	c.notifier.Notify(Notification{
		LineItemID: lineItemID,
		Message:    failureMessage(err),
		At:         c.now(),
	})

	if err := c.reconcileCart(failedAt); err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Error().
			Err(err).
			Str("line_item_id", lineItemID).
			Msg("reconciliation fetch failed")
	}
}

// fetchResult tags a reconciliation fetch with the sequence number it
// started under.
type fetchResult struct {
	seq      uint64
	snapshot *model.CartSnapshot
}

// reconcileCart fetches the cart and replaces local state with it.
// Concurrent reconciliations share a fetch, but only one that started after
// sequence number after; an older fetch may not reflect the failed write.
func (c *Coordinator) reconcileCart(after uint64) error {
	for {
		v, err, _ := c.reconcile.Do("cart", func() (interface{}, error) {
			c.mu.Lock()
			c.fetchSeq++
			res := &fetchResult{seq: c.fetchSeq}
			c.mu.Unlock()

			ctx, cancel := c.requestContext()
			defer cancel()

			snapshot, err := c.svc.FetchCart(ctx)
			if err != nil {
				return res, err
			}
			if snapshot == nil {
				return res, ErrEmptyResponse
			}
			res.snapshot = snapshot
			return res, nil
		})

		res := v.(*fetchResult)
		if res.seq <= after {
			if c.ctx.Err() != nil {
				return c.ctx.Err()
			}
			continue
		}
		if err != nil {
			return err
		}

		c.replaceFetched(res.seq, *res.snapshot)
		return nil
	}
}

func (c *Coordinator) requestContext() (context.Context, context.CancelFunc) {
	if c.requestTimeout > 0 {
		return context.WithTimeout(c.ctx, c.requestTimeout)
	}
	return context.WithCancel(c.ctx)
}

// replace swaps the whole snapshot and publishes it to subscribers.
func (c *Coordinator) replace(snapshot model.CartSnapshot) {
	c.replaceFetched(0, snapshot)
}

// replaceFetched is replace for a reconciliation fetch. A fetch that started
// before the last applied one is dropped.
func (c *Coordinator) replaceFetched(seq uint64, snapshot model.CartSnapshot) {
	next := snapshot.Clone()
	SortLineItems(next.Items)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq > 0 {
		if seq < c.appliedSeq {
			return
		}
		c.appliedSeq = seq
	}

	c.snapshot = next
	for _, ch := range c.subs {
		publish(ch, next.Clone())
	}
}

// publish delivers without blocking; an unread snapshot is replaced by the newer one.
func publish(ch chan model.CartSnapshot, snapshot model.CartSnapshot) {
	select {
	case ch <- snapshot:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snapshot:
	default:
	}
}

// Refresh loads the cart from the service and replaces local state.
func (c *Coordinator) Refresh(ctx context.Context) error {
	snapshot, err := c.svc.FetchCart(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch cart: %w", err)
	}
	if snapshot == nil {
		return ErrEmptyResponse
	}
	c.replace(*snapshot)
	return nil
}

// SetSnapshot replaces local state, for example with the result of a removal.
func (c *Coordinator) SetSnapshot(snapshot model.CartSnapshot) {
	c.replace(snapshot)
}

// Snapshot returns a copy of the current cart view.
func (c *Coordinator) Snapshot() model.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Clone()
}

// IsPending reports whether the line item has updates queued or in flight.
func (c *Coordinator) IsPending(lineItemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPendingLocked(lineItemID)
}

func (c *Coordinator) isPendingLocked(lineItemID string) bool {
	if _, ok := c.draining[lineItemID]; ok {
		return true
	}
	return len(c.queues[lineItemID]) > 0
}

// PendingIDs returns the sorted IDs of all pending line items.
func (c *Coordinator) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.draining))
	for id := range c.draining {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DiscardPending drops queued but unsent updates for a line item and returns
// how many were dropped. An update already in flight is not affected.
func (c *Coordinator) DiscardPending(lineItemID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.queues[lineItemID])
	delete(c.queues, lineItemID)
	return n
}

// Subscribe returns a channel that receives every new snapshot. A slow reader
// only sees the latest one. The returned func unsubscribes.
func (c *Coordinator) Subscribe() (<-chan model.CartSnapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan model.CartSnapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Wait blocks until no drain is running or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight calls, waits for drains to exit and closes all
// subscriptions. Later requests are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.logger.Info().Msg("quantity coordinator closed")
}
