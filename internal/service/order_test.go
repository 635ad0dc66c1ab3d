package service

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finedine/internal/common/logger"
	"finedine/internal/domain"
	"finedine/internal/events"
	"finedine/internal/repository"
)

//
// ---------- fakes ----------
//

// fakeOrders implements repository.Orders in memory with the same atomicity
// contract: number allocation under one lock, archive as copy+delete.
type fakeOrders struct {
	mu       sync.Mutex
	rollover int
	width    int
	counters map[string]int
	live     map[string]*domain.Order
	history  map[string]*domain.ArchivedOrder
}

func newFakeOrders(rollover, width int) *fakeOrders {
	return &fakeOrders{
		rollover: rollover,
		width:    width,
		counters: make(map[string]int),
		live:     make(map[string]*domain.Order),
		history:  make(map[string]*domain.ArchivedOrder),
	}
}

func (f *fakeOrders) Create(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := o.Timestamp.UTC().Format("2006-01-02")
	next := f.counters[day] + 1
	if next > f.rollover {
		next = 1
	}
	f.counters[day] = next
	o.OrderNumber = repository.FormatNumber(next, f.width)
	cp := *o
	f.live[o.ID] = &cp
	return nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.live[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	cp.Items = append([]domain.CartItem(nil), o.Items...)
	return &cp, nil
}

func (f *fakeOrders) ListLive(_ context.Context) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Order, 0, len(f.live))
	for _, o := range f.live {
		cp := *o
		cp.Items = append([]domain.CartItem(nil), o.Items...)
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.live[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrders) UpdateItems(_ context.Context, id string, items []domain.CartItem, total int64, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.live[id]
	if !ok {
		return repository.ErrNotFound
	}
	// whole-array write-back, no version check: last writer wins
	o.Items = append([]domain.CartItem(nil), items...)
	o.TotalPrice = total
	o.Status = status
	return nil
}

func (f *fakeOrders) SetHelp(_ context.Context, id string, requested bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.live[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.HelpRequested = requested
	return nil
}

func (f *fakeOrders) Archive(_ context.Context, id string, archivedAt time.Time) (*domain.ArchivedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.live[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if _, dup := f.history[id]; dup {
		return nil, repository.ErrAlreadyArchived
	}
	// same contract as the transactional store: the precondition is
	// re-checked on the current row, not on what the caller read
	if o.Status != domain.StatusServed {
		return nil, repository.ErrNotServed
	}
	arch := &domain.ArchivedOrder{Order: *o, ArchivedAt: archivedAt.UTC()}
	arch.Status = domain.StatusCompleted
	f.history[id] = arch
	delete(f.live, id)
	return arch, nil
}

func (f *fakeOrders) ListHistory(_ context.Context, from, to time.Time) ([]*domain.ArchivedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ArchivedOrder
	for _, a := range f.history {
		if !a.ArchivedAt.Before(from) && a.ArchivedAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeMenu struct {
	mu    sync.Mutex
	items map[string]*domain.MenuItem
}

func newFakeMenu(items ...*domain.MenuItem) *fakeMenu {
	f := &fakeMenu{items: make(map[string]*domain.MenuItem)}
	for _, m := range items {
		f.items[m.ID] = m
	}
	return f
}

func (f *fakeMenu) Add(_ context.Context, m *domain.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[m.ID] = m
	return nil
}

func (f *fakeMenu) Update(_ context.Context, m *domain.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[m.ID]; !ok {
		return repository.ErrNotFound
	}
	f.items[m.ID] = m
	return nil
}

func (f *fakeMenu) Get(_ context.Context, id string) (*domain.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMenu) List(_ context.Context) ([]*domain.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.MenuItem, 0, len(f.items))
	for _, m := range f.items {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeMenu) SetAvailability(_ context.Context, id string, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Available = available
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type fakeSessions struct {
	mu      sync.Mutex
	started []string
}

func (f *fakeSessions) Start(_ context.Context, orderID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, orderID)
	return nil
}

//
// ---------- fixtures ----------
//

var testLog = logger.NewWriter("test", discard{})

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func latte() *domain.MenuItem {
	return &domain.MenuItem{ID: "latte", Name: "Latte", Category: "Beverages", Price: 200, Available: true}
}

func cake() *domain.MenuItem {
	return &domain.MenuItem{ID: "cake", Name: "Cake", Category: "Desserts", Price: 350, Available: true}
}

func newService(rollover int) (*OrderService, *fakeOrders, *fakePublisher, *fakeSessions) {
	orders := newFakeOrders(rollover, 4)
	pub := &fakePublisher{}
	sessions := &fakeSessions{}
	svc := NewOrderService(orders, newFakeMenu(latte(), cake()), pub, sessions, testLog)
	return svc, orders, pub, sessions
}

//
// ---------- tests ----------
//

func TestPlaceOrder(t *testing.T) {
	svc, _, pub, _ := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, int64(400), o.TotalPrice)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}$`), o.OrderNumber)
	assert.Equal(t, "5", o.TableID)
	assert.NoError(t, domain.ValidateOrder(o))
	assert.Contains(t, pub.types(), events.OrderPlaced)
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, _, _, _ := newService(1000)
	ctx := context.Background()

	_, err := svc.Place(ctx, "", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = svc.Place(ctx, "5", "dev-1", nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 0}})
	assert.Error(t, err)

	_, err = svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "nope", Quantity: 1}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlaceOrderUnavailableItem(t *testing.T) {
	off := latte()
	off.Available = false
	svc := NewOrderService(newFakeOrders(1000, 4), newFakeMenu(off), &fakePublisher{}, &fakeSessions{}, testLog)

	_, err := svc.Place(context.Background(), "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestConcurrentPlacementsGetDistinctNumbers(t *testing.T) {
	svc, _, _, _ := newService(1000)
	ctx := context.Background()

	const n = 50
	numbers := make(chan string, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
			if err != nil {
				errs <- err
				return
			}
			numbers <- o.OrderNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := make(map[string]bool)
	for num := range numbers {
		assert.False(t, seen[num], "number %s allocated twice", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestNumberRollover(t *testing.T) {
	svc, _, _, _ := newService(3)
	ctx := context.Background()

	var numbers []string
	for i := 0; i < 4; i++ {
		o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
		require.NoError(t, err)
		numbers = append(numbers, o.OrderNumber)
	}
	assert.Equal(t, []string{"0001", "0002", "0003", "0001"}, numbers)
}

func TestApproveFlow(t *testing.T) {
	svc, _, pub, _ := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)

	// items cannot be served while Pending
	_, err = svc.MarkItemServed(ctx, o.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	approved, err := svc.Approve(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, approved.Status)
	assert.Contains(t, pub.types(), events.OrderApproved)

	_, err = svc.Approve(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkAllItemsReachesReady(t *testing.T) {
	svc, _, pub, sessions := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{
		{MenuItemID: "latte", Quantity: 1},
		{MenuItemID: "cake", Quantity: 1},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)

	mid, err := svc.MarkItemServed(ctx, o.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, mid.Status)

	done, err := svc.MarkItemServed(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, done.Status)
	assert.Contains(t, pub.types(), events.OrderReady)
	assert.Empty(t, sessions.started, "Ready alone does not start the session")
}

func TestServeStartsSession(t *testing.T) {
	svc, _, pub, sessions := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)

	served, err := svc.Serve(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusServed, served.Status)
	assert.True(t, served.AllServed())
	assert.Contains(t, pub.types(), events.OrderServed)
	assert.Equal(t, []string{o.ID}, sessions.started)
}

func TestAppendResetsToPending(t *testing.T) {
	svc, _, pub, _ := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 2}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.Serve(ctx, o.ID)
	require.NoError(t, err)

	appended, err := svc.Append(ctx, o.ID, []PlaceLine{{MenuItemID: "cake", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, appended.Status, "mid-meal append re-triggers approval")
	assert.Equal(t, int64(400+350), appended.TotalPrice)
	assert.Len(t, appended.Items, 2)
	assert.False(t, appended.Items[1].AddedAt.IsZero(), "appended line carries its timestamp")
	assert.Contains(t, pub.types(), events.OrderAppended)
}

func TestHelpFlag(t *testing.T) {
	svc, orders, pub, _ := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, svc.RequestHelp(ctx, o.ID))
	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.HelpRequested)
	assert.Equal(t, domain.StatusPending, got.Status, "help flag does not touch status")

	require.NoError(t, svc.ResolveHelp(ctx, o.ID))
	got, err = orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.HelpRequested)
	assert.Contains(t, pub.types(), events.HelpRequested)
	assert.Contains(t, pub.types(), events.HelpResolved)
}

func TestArchive(t *testing.T) {
	svc, orders, pub, _ := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)

	// only Served orders may be archived
	_, err = svc.Archive(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotServed)

	_, err = svc.Serve(ctx, o.ID)
	require.NoError(t, err)

	arch, err := svc.Archive(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, arch.Status)
	assert.False(t, arch.ArchivedAt.IsZero())

	// live and history never hold the same id at once
	_, err = orders.Get(ctx, o.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	day := arch.ArchivedAt
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	hist, err := orders.ListHistory(ctx, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, o.ID, hist[0].ID)

	assert.Contains(t, pub.types(), events.OrderArchived)
}

// interleavedOrders runs a hook after the first Get, simulating a write that
// commits between the caller's read and the archive transaction.
type interleavedOrders struct {
	*fakeOrders
	interleave func()
	once       sync.Once
}

func (r *interleavedOrders) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.fakeOrders.Get(ctx, id)
	if err == nil {
		r.once.Do(r.interleave)
	}
	return o, err
}

func TestArchiveAbortsWhenAppendSlipsIn(t *testing.T) {
	base := newFakeOrders(1000, 4)
	menu := newFakeMenu(latte(), cake())
	pub := &fakePublisher{}
	inner := NewOrderService(base, menu, pub, nil, testLog)
	ctx := context.Background()

	o, err := inner.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)
	_, err = inner.Approve(ctx, o.ID)
	require.NoError(t, err)
	_, err = inner.Serve(ctx, o.ID)
	require.NoError(t, err)

	// the customer's append lands after the archiving staff read Served but
	// before the archive transaction locks the row
	racing := &interleavedOrders{fakeOrders: base, interleave: func() {
		_, appErr := inner.Append(ctx, o.ID, []PlaceLine{{MenuItemID: "cake", Quantity: 1}})
		require.NoError(t, appErr)
	}}
	svc := NewOrderService(racing, menu, pub, nil, testLog)

	_, err = svc.Archive(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotServed)

	// the order stays live, back in Pending with the appended line intact
	got, err := base.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, int64(550), got.TotalPrice)
	hist, err := base.ListHistory(ctx, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestClearTableStrictPolicy(t *testing.T) {
	svc, _, _, _ := newService(1000)
	ctx := context.Background()

	served, err := svc.Place(ctx, "7", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, served.ID)
	require.NoError(t, err)
	_, err = svc.Serve(ctx, served.ID)
	require.NoError(t, err)

	pending, err := svc.Place(ctx, "7", "dev-2", []PlaceLine{{MenuItemID: "cake", Quantity: 1}})
	require.NoError(t, err)

	otherTable, err := svc.Place(ctx, "9", "dev-3", []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
	require.NoError(t, err)

	res, err := svc.ClearTable(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{served.ID}, res.Archived)
	assert.Equal(t, []string{pending.ID}, res.Skipped)

	groups, err := svc.Grouped(ctx)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, g := range groups {
		for _, o := range g.Orders {
			ids[o.ID] = true
		}
	}
	assert.True(t, ids[pending.ID], "skipped order stays live")
	assert.True(t, ids[otherTable.ID], "other tables untouched")
	assert.False(t, ids[served.ID])

	_, err = svc.ClearTable(ctx, "empty-table")
	assert.ErrorIs(t, err, ErrNothingToArchive)
}

func TestHistorySummary(t *testing.T) {
	svc, _, _, _ := newService(1000)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{{MenuItemID: "latte", Quantity: 2}})
		require.NoError(t, err)
		_, err = svc.Approve(ctx, o.ID)
		require.NoError(t, err)
		_, err = svc.Serve(ctx, o.ID)
		require.NoError(t, err)
		_, err = svc.Archive(ctx, o.ID)
		require.NoError(t, err)
	}

	list, summary, err := svc.History(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, int64(800), summary.Revenue)

	_, summary, err = svc.History(ctx, time.Now().UTC().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Zero(t, summary.Orders, "half-open day interval excludes other days")
}

// TestItemMarkLastWriterWins documents the accepted race on the items
// array: two staff devices reading the same order and writing back different
// marks will lose one of them until the next refresh.
func TestItemMarkLastWriterWins(t *testing.T) {
	svc, orders, _, _ := newService(1000)
	ctx := context.Background()

	o, err := svc.Place(ctx, "5", "dev-1", []PlaceLine{
		{MenuItemID: "latte", Quantity: 1},
		{MenuItemID: "cake", Quantity: 1},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)

	// both devices read the same snapshot
	a, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	b, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)

	require.NoError(t, a.MarkItemServed(0))
	require.NoError(t, b.MarkItemServed(1))
	require.NoError(t, orders.UpdateItems(ctx, o.ID, a.Items, a.TotalPrice, a.Status))
	require.NoError(t, orders.UpdateItems(ctx, o.ID, b.Items, b.TotalPrice, b.Status))

	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPending, got.Items[0].Status, "first writer's mark is lost")
	assert.Equal(t, domain.ItemServed, got.Items[1].Status)
	assert.NoError(t, domain.ValidateOrder(got), "the race never corrupts the document")
}

func TestGroupedBoard(t *testing.T) {
	svc, _, _, _ := newService(1000)
	ctx := context.Background()

	for i, table := range []string{"5", "5", domain.TableTakeaway} {
		_, err := svc.Place(ctx, table, fmt.Sprintf("dev-%d", i), []PlaceLine{{MenuItemID: "latte", Quantity: 1}})
		require.NoError(t, err)
	}
	groups, err := svc.Grouped(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "5", groups[0].TableID)
	assert.Len(t, groups[0].Orders, 2)
	assert.Equal(t, domain.TableTakeaway, groups[1].TableID)
}
