package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finedine/internal/common/kv"
	"finedine/internal/domain"
)

// Store is the explicit device-scoped cart: one cart per device key, held in
// the durable KV collaborator so it survives reloads but never syncs across
// devices. Lifecycle: created on first add, cleared on checkout, session
// expiry or idle timeout.
type Store struct {
	kv  kv.Store
	ttl time.Duration
}

func NewStore(store kv.Store, ttl time.Duration) *Store {
	return &Store{kv: store, ttl: ttl}
}

func key(deviceID string) string { return "cart:" + deviceID }

// Get returns the device's cart, empty when none exists.
func (s *Store) Get(ctx context.Context, deviceID string) ([]domain.CartItem, error) {
	raw, err := s.kv.Get(ctx, key(deviceID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, deviceID string, items []domain.CartItem) error {
	if len(items) == 0 {
		return s.Clear(ctx, deviceID)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Set(ctx, key(deviceID), string(raw), s.ttl)
}

// Add puts one unit of the menu item in the cart, bumping quantity when the
// line already exists.
func (s *Store) Add(ctx context.Context, deviceID string, m *domain.MenuItem) ([]domain.CartItem, error) {
	items, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range items {
		if items[i].MenuItemID == m.ID {
			items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		items = append(items, domain.CartItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			Category:   m.Category,
			Price:      m.Price,
			Quantity:   1,
			Status:     domain.ItemPending,
		})
	}
	return items, s.save(ctx, deviceID, items)
}

// SetQuantity updates a line; zero or less removes it.
func (s *Store) SetQuantity(ctx context.Context, deviceID, menuItemID string, quantity int) ([]domain.CartItem, error) {
	items, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.MenuItemID == menuItemID {
			if quantity <= 0 {
				continue
			}
			it.Quantity = quantity
		}
		out = append(out, it)
	}
	return out, s.save(ctx, deviceID, out)
}

// Remove drops a line entirely.
func (s *Store) Remove(ctx context.Context, deviceID, menuItemID string) ([]domain.CartItem, error) {
	return s.SetQuantity(ctx, deviceID, menuItemID, 0)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, deviceID string) error {
	err := s.kv.Del(ctx, key(deviceID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	return err
}

// Total sums the cart.
func (s *Store) Total(ctx context.Context, deviceID string) (int64, error) {
	items, err := s.Get(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	return domain.ItemsTotal(items), nil
}
