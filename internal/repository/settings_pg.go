package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	gocache "github.com/patrickmn/go-cache"

	"finedine/internal/common/db"
	"finedine/internal/domain"
)

const printSettingsKey = "print_template"

// settingsPG keeps receipt branding in a single settings row. Reads go
// through a short-lived in-process cache since the row changes rarely and is
// read on every printed ticket.
type settingsPG struct {
	conn  *db.Conn
	cache *gocache.Cache
}

func NewSettingsPG(conn *db.Conn) Settings {
	return &settingsPG{conn: conn, cache: gocache.New(time.Minute, 5*time.Minute)}
}

func (r *settingsPG) GetPrint(ctx context.Context) (*domain.PrintSettings, error) {
	if v, ok := r.cache.Get(printSettingsKey); ok {
		s := v.(domain.PrintSettings)
		return &s, nil
	}
	var raw []byte
	err := r.conn.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, printSettingsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read print settings: %w", err)
	}
	var s domain.PrintSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode print settings: %w", err)
	}
	r.cache.SetDefault(printSettingsKey, s)
	return &s, nil
}

func (r *settingsPG) SavePrint(ctx context.Context, s *domain.PrintSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode print settings: %w", err)
	}
	if _, err := r.conn.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, printSettingsKey, raw); err != nil {
		return fmt.Errorf("save print settings: %w", err)
	}
	r.cache.SetDefault(printSettingsKey, *s)
	return nil
}
