package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/arena-live-go/internal/achievement"
	appcfg "github.com/kapu/arena-live-go/internal/config"
	"github.com/kapu/arena-live-go/internal/directory"
	"github.com/kapu/arena-live-go/internal/fanout"
	"github.com/kapu/arena-live-go/internal/gateway"
	"github.com/kapu/arena-live-go/internal/httpapi"
	"github.com/kapu/arena-live-go/internal/ingest"
	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/notify"
	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/internal/progress"
	"github.com/kapu/arena-live-go/internal/registry"
	"github.com/kapu/arena-live-go/internal/streak"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	dir := directory.New(rdb, cfg.ConnectionTTL)
	reg := registry.New()

	boards := leaderboard.NewRepository(db)
	prog := progress.NewRepository(db)

	catalog, err := achievement.NewCatalog()
	if err != nil {
		log.Fatalf("achievement catalog error: %v", err)
	}
	achieveEngine := achievement.NewEngine(achievement.NewRepository(db), catalog)
	if hook := notify.NewWebhook(cfg.WebhookURL); hook != nil {
		achieveEngine.SetNotifier(hook)
	}
	streakEngine := streak.NewEngine(streak.NewRepository(db), achieveEngine)

	pool := gateway.NewPool(cfg.PushTimeout)
	broadcaster := fanout.NewBroadcaster(boards, reg, dir, pool, cfg.SnapshotLimit)
	ingestSvc := ingest.NewService(boards, prog, streakEngine, achieveEngine, broadcaster)

	// Subscriptions survive a recycle only when connection ids stay valid
	// across processes (gateway-affine deployments). Off by default only
	// via HYDRATE_REGISTRY=false.
	if cfg.HydrateRegistry {
		hctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if pairs, err := dir.Snapshot(hctx); err != nil {
			obslog.L().Warn("registry_hydrate_failed", zap.Error(err))
		} else if len(pairs) > 0 {
			reg.Hydrate(pairs)
			obslog.L().Info("registry_hydrated", zap.Int("connections", len(pairs)))
		}
		cancel()
	}

	ws := gateway.NewServer(pool, reg, dir, ingestSvc, broadcaster)
	api := httpapi.NewHandler(boards, prog, streakEngine, achieveEngine)

	root := mux.NewRouter()
	root.Handle("/ws", ws)
	root.PathPrefix("/api/").Handler(api.Router())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func openDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
