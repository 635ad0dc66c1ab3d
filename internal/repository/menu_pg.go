package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"finedine/internal/common/db"
	"finedine/internal/domain"
)

type menuPG struct{ conn *db.Conn }

func NewMenuPG(conn *db.Conn) Menu { return &menuPG{conn: conn} }

func (r *menuPG) Add(ctx context.Context, m *domain.MenuItem) error {
	if err := domain.ValidateMenuItem(m); err != nil {
		return err
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO menu_items (id, name, category, price, description, available, image_ref, show_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.Name, m.Category, m.Price, m.Description, m.Available, m.ImageRef, m.ShowImage)
	if err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	return nil
}

func (r *menuPG) Update(ctx context.Context, m *domain.MenuItem) error {
	if err := domain.ValidateMenuItem(m); err != nil {
		return err
	}
	tag, err := r.conn.Exec(ctx, `
		UPDATE menu_items
		SET name = $2, category = $3, price = $4, description = $5, available = $6, image_ref = $7, show_image = $8
		WHERE id = $1
	`, m.ID, m.Name, m.Category, m.Price, m.Description, m.Available, m.ImageRef, m.ShowImage)
	if err != nil {
		return fmt.Errorf("update menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuPG) Get(ctx context.Context, id string) (*domain.MenuItem, error) {
	var m domain.MenuItem
	err := r.conn.QueryRow(ctx, `
		SELECT id, name, category, price, description, available, image_ref, show_image
		FROM menu_items WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.Description, &m.Available, &m.ImageRef, &m.ShowImage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateMenuItem(&m); err != nil {
		return nil, fmt.Errorf("invalid menu document: %w", err)
	}
	return &m, nil
}

func (r *menuPG) List(ctx context.Context) ([]*domain.MenuItem, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, category, price, description, available, image_ref, show_image
		FROM menu_items ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.MenuItem
	for rows.Next() {
		var m domain.MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.Description, &m.Available, &m.ImageRef, &m.ShowImage); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *menuPG) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := r.conn.Exec(ctx, `UPDATE menu_items SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
