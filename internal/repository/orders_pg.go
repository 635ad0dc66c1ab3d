package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"finedine/internal/common/db"
	"finedine/internal/domain"
)

type ordersPG struct {
	conn     *db.Conn
	rollover int
	width    int
}

// NewOrdersPG builds the Postgres-backed order store. rollover and width
// configure the display-number allocator.
func NewOrdersPG(conn *db.Conn, rollover, width int) Orders {
	return &ordersPG{conn: conn, rollover: rollover, width: width}
}

func (r *ordersPG) Create(ctx context.Context, o *domain.Order) error {
	day := o.Timestamp.UTC().Format("2006-01-02")

	tx, err := r.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock on the day's counter serializes concurrent checkouts.
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_counters (day, value) VALUES ($1, 0)
		ON CONFLICT (day) DO NOTHING
	`, day); err != nil {
		return fmt.Errorf("ensure counter row: %w", err)
	}
	var current int
	if err := tx.QueryRow(ctx, `
		SELECT value FROM order_counters WHERE day = $1 FOR UPDATE
	`, day).Scan(&current); err != nil {
		return fmt.Errorf("lock counter: %w", err)
	}
	next := nextCounter(current, r.rollover)
	if _, err := tx.Exec(ctx, `
		UPDATE order_counters SET value = $2 WHERE day = $1
	`, day, next); err != nil {
		return fmt.Errorf("advance counter: %w", err)
	}
	o.OrderNumber = FormatNumber(next, r.width)

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO orders (id, table_id, device_id, order_number, items, total_price, status, help_requested, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`, o.ID, o.TableID, o.DeviceID, o.OrderNumber, items, o.TotalPrice, o.Status, o.HelpRequested).Scan(&o.Timestamp); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

const orderColumns = `id, table_id, device_id, order_number, items, total_price, status, help_requested, created_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var items []byte
	if err := row.Scan(&o.ID, &o.TableID, &o.DeviceID, &o.OrderNumber, &items, &o.TotalPrice, &o.Status, &o.HelpRequested, &o.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items for %s: %w", o.ID, err)
	}
	if err := domain.ValidateOrder(&o); err != nil {
		return nil, fmt.Errorf("invalid order document: %w", err)
	}
	return &o, nil
}

func (r *ordersPG) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *ordersPG) ListLive(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ordersPG) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	tag, err := r.conn.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ordersPG) UpdateItems(ctx context.Context, id string, items []domain.CartItem, total int64, status domain.Status) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	tag, err := r.conn.Exec(ctx, `
		UPDATE orders SET items = $2, total_price = $3, status = $4 WHERE id = $1
	`, id, raw, total, status)
	if err != nil {
		return fmt.Errorf("update items: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ordersPG) SetHelp(ctx context.Context, id string, requested bool) error {
	tag, err := r.conn.Exec(ctx, `UPDATE orders SET help_requested = $2 WHERE id = $1`, id, requested)
	if err != nil {
		return fmt.Errorf("set help flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive is the one dual-write in the system: the history insert and the
// live delete commit together or not at all.
func (r *ordersPG) Archive(ctx context.Context, id string, archivedAt time.Time) (*domain.ArchivedOrder, error) {
	tx, err := r.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	// Re-check under the lock: a concurrent append may have dropped the
	// order back to Pending since the caller last read it.
	if o.Status != domain.StatusServed {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotServed, id, o.Status)
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	arch := &domain.ArchivedOrder{Order: *o, ArchivedAt: archivedAt.UTC()}
	arch.Status = domain.StatusCompleted
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_history (id, day, table_id, order_number, items, total_price, status, help_requested, created_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, arch.ID, arch.ArchivedAt.Format("2006-01-02"), arch.TableID, arch.OrderNumber, items,
		arch.TotalPrice, arch.Status, arch.HelpRequested, arch.Timestamp, arch.ArchivedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyArchived
		}
		return nil, fmt.Errorf("copy into history: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete live order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit archive tx: %w", err)
	}
	return arch, nil
}

func (r *ordersPG) ListHistory(ctx context.Context, from, to time.Time) ([]*domain.ArchivedOrder, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, table_id, order_number, items, total_price, status, help_requested, created_at, archived_at
		FROM order_history
		WHERE archived_at >= $1 AND archived_at < $2
		ORDER BY archived_at DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ArchivedOrder
	for rows.Next() {
		var a domain.ArchivedOrder
		var items []byte
		if err := rows.Scan(&a.ID, &a.TableID, &a.OrderNumber, &items, &a.TotalPrice, &a.Status,
			&a.HelpRequested, &a.Timestamp, &a.ArchivedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &a.Items); err != nil {
			return nil, fmt.Errorf("decode items for %s: %w", a.ID, err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
