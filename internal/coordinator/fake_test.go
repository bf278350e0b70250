package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"cartsync/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type updateCall struct {
	LineItemID string
	Quantity   int
}

// fakeCartService is an in-memory cart backend that records calls and
// tracks how many updates per line item run at once.
type fakeCartService struct {
	mu          sync.Mutex
	items       map[string]model.LineItem
	updates     []updateCall
	fetches     int
	inFlight    map[string]int
	maxInFlight map[string]int

	// beforeUpdate runs before the update is applied. A non-nil error fails the call.
	beforeUpdate func(ctx context.Context, id string, quantity int) error
	// afterFetch runs once the cart has been read, before it is returned.
	afterFetch   func(ctx context.Context)
	fetchErr     error
	nilResponse  bool
}

func newFakeCartService(items ...model.LineItem) *fakeCartService {
	f := &fakeCartService{
		items:       make(map[string]model.LineItem),
		inFlight:    make(map[string]int),
		maxInFlight: make(map[string]int),
	}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeCartService) UpdateQuantity(ctx context.Context, id string, quantity int) (*model.CartSnapshot, error) {
	f.mu.Lock()
	f.updates = append(f.updates, updateCall{LineItemID: id, Quantity: quantity})
	f.inFlight[id]++
	if f.inFlight[id] > f.maxInFlight[id] {
		f.maxInFlight[id] = f.inFlight[id]
	}
	hook := f.beforeUpdate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight[id]--
		f.mu.Unlock()
	}()

	if hook != nil {
		if err := hook(ctx, id, quantity); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.nilResponse {
		return nil, nil
	}

	item, ok := f.items[id]
	if !ok {
		return nil, errors.New("line item not found")
	}
	item.Quantity = quantity
	f.items[id] = item

	return f.snapshotLocked(), nil
}

func (f *fakeCartService) FetchCart(ctx context.Context) (*model.CartSnapshot, error) {
	f.mu.Lock()
	f.fetches++
	hook := f.afterFetch
	fetchErr := f.fetchErr
	var snapshot *model.CartSnapshot
	if fetchErr == nil {
		snapshot = f.snapshotLocked()
	}
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return snapshot, nil
}

// commit applies a quantity without going through UpdateQuantity.
func (f *fakeCartService) commit(id string, quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := f.items[id]
	item.Quantity = quantity
	f.items[id] = item
}

// snapshotLocked returns items in reverse ID order so callers cannot rely
// on the backend ordering.
func (f *fakeCartService) snapshotLocked() *model.CartSnapshot {
	items := make([]model.LineItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return &model.CartSnapshot{Items: items, Summary: model.Summarise(items)}
}

func (f *fakeCartService) Updates() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]updateCall, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeCartService) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeCartService) MaxInFlight(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight[id]
}

// manualScheduler collects drains so tests decide when they run.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

func (s *manualScheduler) Schedule(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) RunAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

// userError carries a message meant for the shopper.
type userError struct {
	msg string
}

func (e *userError) Error() string       { return "upstream: " + e.msg }
func (e *userError) UserMessage() string { return e.msg }

func lineItem(id, productID string, quantity int) model.LineItem {
	return model.LineItem{
		ID:        id,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString("2.50"),
	}
}

func weighted(item model.LineItem, weight string) model.LineItem {
	w := decimal.RequireFromString(weight)
	item.SelectedWeight = &w
	return item
}

func quantityOf(t *testing.T, c *Coordinator, id string) int {
	t.Helper()
	item, ok := c.Snapshot().Find(id)
	require.True(t, ok, "line item %s not in snapshot", id)
	return item.Quantity
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}
