package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finedine/internal/common/logger"
	"finedine/internal/domain"
	"finedine/internal/events"
	"finedine/internal/repository"
)

var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrItemUnavailable = errors.New("menu item unavailable")
	// ErrNotServed is the repository sentinel: the authoritative check runs
	// inside the archive transaction, on the locked row.
	ErrNotServed        = repository.ErrNotServed
	ErrUnknownTable     = errors.New("table id is required")
	ErrNothingToArchive = errors.New("no orders to archive")
)

// SessionStarter is the hook into the session tracker: serving an order
// starts that order's countdown.
type SessionStarter interface {
	Start(ctx context.Context, orderID, deviceID string) error
}

// PlaceLine is one requested line at checkout or append time.
type PlaceLine struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

// ClearResult reports what a bulk "finish & clear" did per table.
type ClearResult struct {
	Archived []string `json:"archived"`
	Skipped  []string `json:"skipped"` // live orders not yet Served
}

// DailySummary aggregates one day of archived orders.
type DailySummary struct {
	Orders  int   `json:"orders"`
	Revenue int64 `json:"revenue"`
}

// OrderService drives the order lifecycle. Every mutation is a single
// document write except order creation (allocator transaction) and archival
// (dual-write transaction), which the repository keeps atomic.
type OrderService struct {
	orders   repository.Orders
	menu     repository.Menu
	pub      events.Publisher
	sessions SessionStarter
	lg       *logger.Logger
}

func NewOrderService(orders repository.Orders, menu repository.Menu, pub events.Publisher, sessions SessionStarter, lg *logger.Logger) *OrderService {
	return &OrderService{orders: orders, menu: menu, pub: pub, sessions: sessions, lg: lg}
}

// snapshotLines resolves requested lines against the live menu and copies
// the item fields by value, so later menu edits never touch placed orders.
func (s *OrderService) snapshotLines(ctx context.Context, lines []PlaceLine, addedAt time.Time) ([]domain.CartItem, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	items := make([]domain.CartItem, 0, len(lines))
	for _, ln := range lines {
		if ln.Quantity < 1 {
			return nil, fmt.Errorf("invalid quantity %d for item %s", ln.Quantity, ln.MenuItemID)
		}
		m, err := s.menu.Get(ctx, ln.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("resolve item %s: %w", ln.MenuItemID, err)
		}
		if !m.Available {
			return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, m.Name)
		}
		items = append(items, domain.CartItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			Category:   m.Category,
			Price:      m.Price,
			Quantity:   ln.Quantity,
			Status:     domain.ItemPending,
			AddedAt:    addedAt,
		})
	}
	return items, nil
}

// Place creates a new Pending order for the table. The order number is
// allocated inside the create transaction; if that fails no order exists.
func (s *OrderService) Place(ctx context.Context, tableID, deviceID string, lines []PlaceLine) (*domain.Order, error) {
	if tableID == "" {
		return nil, ErrUnknownTable
	}
	items, err := s.snapshotLines(ctx, lines, time.Time{})
	if err != nil {
		return nil, err
	}
	o := &domain.Order{
		ID:         uuid.NewString(),
		TableID:    tableID,
		DeviceID:   deviceID,
		Items:      items,
		TotalPrice: domain.ItemsTotal(items),
		Status:     domain.StatusPending,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	s.publish(ctx, events.FromOrder(events.OrderPlaced, o))
	s.lg.Info("order_placed", map[string]any{"order_id": o.ID, "number": o.OrderNumber, "table": o.TableID, "total": o.TotalPrice})
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// Grouped returns the live orders bucketed by table for the staff board.
func (s *OrderService) Grouped(ctx context.Context) ([]domain.TableGroup, error) {
	live, err := s.orders.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	return domain.GroupByTable(live), nil
}

// Approve acknowledges a Pending order.
func (s *OrderService) Approve(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.Approve(); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, id, o.Status); err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromOrder(events.OrderApproved, o))
	return o, nil
}

// MarkItemServed marks one line served. Read-modify-write over the whole
// items array; concurrent marks on the same order are last-writer-wins.
func (s *OrderService) MarkItemServed(ctx context.Context, id string, idx int) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := o.Status
	if err := o.MarkItemServed(idx); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateItems(ctx, id, o.Items, o.TotalPrice, o.Status); err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromOrder(events.ItemServed, o))
	if before != domain.StatusReady && o.Status == domain.StatusReady {
		s.publish(ctx, events.FromOrder(events.OrderReady, o))
	}
	return o, nil
}

// Serve is the staff "final serve": every line goes served, the order goes
// Served, and the table session countdown starts.
func (s *OrderService) Serve(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.Serve(); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateItems(ctx, id, o.Items, o.TotalPrice, o.Status); err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromOrder(events.OrderServed, o))
	if s.sessions != nil {
		if err := s.sessions.Start(ctx, o.ID, o.DeviceID); err != nil {
			s.lg.Error("session_start_failed", err, map[string]any{"order_id": o.ID})
		}
	}
	return o, nil
}

// Append adds lines mid-meal and drops the order back to Pending for
// re-approval. The total is bumped additively by the appended lines.
func (s *OrderService) Append(ctx context.Context, id string, lines []PlaceLine) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.snapshotLines(ctx, lines, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := o.Append(items); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateItems(ctx, id, o.Items, o.TotalPrice, o.Status); err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromOrder(events.OrderAppended, o))
	s.lg.Info("order_appended", map[string]any{"order_id": o.ID, "lines": len(lines), "total": o.TotalPrice})
	return o, nil
}

// RequestHelp raises the staff-assistance flag. Orthogonal to status; legal
// at any point while the order is live.
func (s *OrderService) RequestHelp(ctx context.Context, id string) error {
	if err := s.orders.SetHelp(ctx, id, true); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.HelpRequested, OrderID: id, At: time.Now().UTC()})
	return nil
}

// ResolveHelp clears the flag; staff-only.
func (s *OrderService) ResolveHelp(ctx context.Context, id string) error {
	if err := s.orders.SetHelp(ctx, id, false); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.HelpResolved, OrderID: id, At: time.Now().UTC()})
	return nil
}

// Archive completes one Served order: atomic copy into the day's history
// partition plus delete of the live document. The early status check is a
// fast path; the repository re-checks under the row lock, so a concurrent
// append between them still aborts the archive.
func (s *OrderService) Archive(ctx context.Context, id string) (*domain.ArchivedOrder, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusServed {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotServed, id, o.Status)
	}
	arch, err := s.orders.Archive(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromOrder(events.OrderArchived, &arch.Order))
	s.lg.Info("order_archived", map[string]any{"order_id": arch.ID, "number": arch.OrderNumber})
	return arch, nil
}

// ClearTable archives every Served order at the table, one archive
// transaction per order. Orders not yet Served are skipped and reported
// rather than force-archived.
func (s *OrderService) ClearTable(ctx context.Context, tableID string) (*ClearResult, error) {
	live, err := s.orders.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	res := &ClearResult{}
	for _, o := range live {
		if o.TableID != tableID {
			continue
		}
		if o.Status != domain.StatusServed {
			res.Skipped = append(res.Skipped, o.ID)
			s.lg.Debug("clear_skipped_unserved", map[string]any{"order_id": o.ID, "status": o.Status})
			continue
		}
		if _, err := s.Archive(ctx, o.ID); err != nil {
			return res, fmt.Errorf("archive %s: %w", o.ID, err)
		}
		res.Archived = append(res.Archived, o.ID)
	}
	if len(res.Archived) == 0 && len(res.Skipped) == 0 {
		return nil, ErrNothingToArchive
	}
	return res, nil
}

// History returns one calendar day of archived orders plus its summary.
// The day is queried as the half-open interval [startOfDay, nextDay).
func (s *OrderService) History(ctx context.Context, day time.Time) ([]*domain.ArchivedOrder, DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	list, err := s.orders.ListHistory(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, DailySummary{}, err
	}
	sum := DailySummary{Orders: len(list)}
	for _, a := range list {
		sum.Revenue += a.TotalPrice
	}
	return list, sum, nil
}

// publish pushes a lifecycle event; the stream is advisory, so a broker
// failure is logged and the mutating action still succeeds.
func (s *OrderService) publish(ctx context.Context, e events.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		s.lg.Error("event_publish_failed", err, map[string]any{"type": e.Type, "order_id": e.OrderID})
	}
}
