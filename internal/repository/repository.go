package repository

import (
	"context"
	"errors"
	"time"

	"finedine/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrAlreadyArchived guards the live/history exclusivity invariant: an
	// order ID lives in at most one of the two partitions.
	ErrAlreadyArchived = errors.New("order already archived")
	// ErrNotServed is returned by Archive when the locked row is not in the
	// Served state, whatever the caller saw before the transaction began.
	ErrNotServed = errors.New("order not served yet")
)

// Orders persists live orders, the per-day number counter and the historical
// partition. Create and Archive are the two operations that must be atomic;
// everything else is a plain document write.
type Orders interface {
	// Create allocates the day's next order number and inserts the order in
	// one transaction. On failure no order exists and no number is burned
	// beyond the aborted transaction.
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListLive(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	// UpdateItems writes the whole items array back along with the derived
	// total and status. No optimistic-concurrency check: concurrent staff
	// marking different lines is a last-writer-wins race, accepted as low
	// stakes (a served mark can be transiently lost until the next read).
	UpdateItems(ctx context.Context, id string, items []domain.CartItem, total int64, status domain.Status) error
	SetHelp(ctx context.Context, id string, requested bool) error
	// Archive copies the order into the history partition with the archival
	// timestamp and deletes the live row, atomically. The Served precondition
	// is re-checked on the locked row inside the transaction, so an order that
	// slipped back to Pending (a concurrent append) is never force-completed.
	Archive(ctx context.Context, id string, archivedAt time.Time) (*domain.ArchivedOrder, error)
	// ListHistory returns archived orders with archived_at in [from, to).
	ListHistory(ctx context.Context, from, to time.Time) ([]*domain.ArchivedOrder, error)
}

// Menu is the staff-managed catalogue; read-only to the ordering flow.
type Menu interface {
	Add(ctx context.Context, m *domain.MenuItem) error
	Update(ctx context.Context, m *domain.MenuItem) error
	Get(ctx context.Context, id string) (*domain.MenuItem, error)
	List(ctx context.Context) ([]*domain.MenuItem, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

// Settings stores small read-modify-write configuration records.
type Settings interface {
	GetPrint(ctx context.Context) (*domain.PrintSettings, error)
	SavePrint(ctx context.Context, s *domain.PrintSettings) error
}
