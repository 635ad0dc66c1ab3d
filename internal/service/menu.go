package service

import (
	"context"

	"github.com/google/uuid"

	"finedine/internal/common/logger"
	"finedine/internal/domain"
	"finedine/internal/repository"
)

// MenuService is the staff-facing catalogue management. The ordering flow
// never writes through here; it only snapshots items at checkout.
type MenuService struct {
	menu repository.Menu
	lg   *logger.Logger
}

func NewMenuService(menu repository.Menu, lg *logger.Logger) *MenuService {
	return &MenuService{menu: menu, lg: lg}
}

func (s *MenuService) Add(ctx context.Context, m *domain.MenuItem) (*domain.MenuItem, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.menu.Add(ctx, m); err != nil {
		return nil, err
	}
	s.lg.Info("menu_item_added", map[string]any{"id": m.ID, "name": m.Name})
	return m, nil
}

func (s *MenuService) Update(ctx context.Context, m *domain.MenuItem) error {
	return s.menu.Update(ctx, m)
}

func (s *MenuService) Get(ctx context.Context, id string) (*domain.MenuItem, error) {
	return s.menu.Get(ctx, id)
}

func (s *MenuService) List(ctx context.Context) ([]*domain.MenuItem, error) {
	return s.menu.List(ctx)
}

func (s *MenuService) SetAvailability(ctx context.Context, id string, available bool) error {
	return s.menu.SetAvailability(ctx, id, available)
}
