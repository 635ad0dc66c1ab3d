package api

import (
	"context"
	"time"

	"finedine/internal/cart"
	"finedine/internal/common/db"
	"finedine/internal/common/httpx"
	"finedine/internal/common/kv"
	"finedine/internal/common/logger"
	"finedine/internal/common/mq"
	"finedine/internal/config"
	"finedine/internal/events"
	"finedine/internal/repository"
	"finedine/internal/service"
	"finedine/internal/session"
)

// Run wires the API service together and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	lg := logger.New("api")

	conn, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	store, err := kv.Dial(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}

	mqc, err := mq.Dial(cfg.RabbitHost, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareTopology(); err != nil {
		return err
	}
	pub := events.NewAMQPPublisher(mqc)

	ordersRepo := repository.NewOrdersPG(conn, cfg.NumberRollover, cfg.NumberWidth)
	menuRepo := repository.NewMenuPG(conn)
	settingsRepo := repository.NewSettingsPG(conn)

	carts := cart.NewStore(store, cfg.IdleTTL)

	tracker := session.NewTracker(store, cfg.SessionTTL, time.Second, lg)
	tracker.OnExpire = func(orderID, deviceID string) {
		expireCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if deviceID != "" {
			if err := carts.Clear(expireCtx, deviceID); err != nil {
				lg.Error("session_cart_clear_failed", err, map[string]any{"device": deviceID})
			}
		}
		if err := pub.Publish(expireCtx, events.Event{Type: events.SessionEnded, OrderID: orderID, At: time.Now().UTC()}); err != nil {
			lg.Error("event_publish_failed", err, map[string]any{"type": events.SessionEnded, "order_id": orderID})
		}
	}
	defer tracker.Stop()

	idle := session.NewIdleWatcher(cfg.IdleTTL, func(deviceID string) {
		idleCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := carts.Clear(idleCtx, deviceID); err != nil {
			lg.Error("idle_cart_clear_failed", err, map[string]any{"device": deviceID})
			return
		}
		lg.Info("idle_cart_cleared", map[string]any{"device": deviceID})
	})
	defer idle.Stop()

	orders := service.NewOrderService(ordersRepo, menuRepo, pub, tracker, lg)
	menu := service.NewMenuService(menuRepo, lg)

	// Countdowns persisted before a restart resume where they left off.
	if err := tracker.Resume(ctx); err != nil {
		lg.Error("session_resume_failed", err, nil)
	}

	h := NewHandler(orders, menu, carts, tracker, idle, settingsRepo, lg)
	h.AddCheck("postgres", conn.Ping)
	h.AddCheck("rabbitmq", func(context.Context) error { return mqc.Ping() })
	srv := httpx.New(cfg.HTTPAddr, h.Router())
	lg.Info("api_listening", map[string]any{"addr": cfg.HTTPAddr})
	return srv.Run(ctx)
}
