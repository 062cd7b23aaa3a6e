package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"realtime-chat/bus"
	"realtime-chat/config"
	"realtime-chat/handlers"
	"realtime-chat/repository"
	"realtime-chat/services"
	"realtime-chat/utils"
	"realtime-chat/ws"
)

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*repository.Store, error) {
	if cfg.Store == config.StoreMongo {
		return repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	}
	logger.Warn("using in-memory store, data is lost on restart")
	return repository.NewInMemoryStore(), nil
}

func openBus(ctx context.Context, cfg config.Config, logger *zap.Logger) (bus.Bus, error) {
	if cfg.RedisAddr == "" {
		return bus.NewLocal(), nil
	}
	return bus.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.BusPrefix, logger)
}

func main() {
	// --- config/env ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- storage and bus ---
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("store", cfg.Store), zap.Error(err))
	}
	b, err := openBus(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open bus", zap.String("redis", cfg.RedisAddr), zap.Error(err))
	}

	// --- websocket hub ---
	hub := ws.NewHub(b, logger)
	if err := hub.Start(ctx); err != nil {
		logger.Fatal("start hub", zap.Error(err))
	}

	// --- services ---
	newCode, err := utils.NewRoomCodeGenerator()
	if err != nil {
		logger.Fatal("room code generator", zap.Error(err))
	}
	authSvc := services.NewAuthService(store, cfg.JWTSecret, cfg.TokenTTL(), logger)
	presenceSvc := services.NewPresenceService(store.Users, hub, logger)
	roomSvc := services.NewRoomService(store, hub, newCode, cfg.DefaultMaxMembers, logger)
	msgSvc := services.NewMessageService(store, hub, cfg.MaxMessageLength, logger)
	sockets := ws.NewRouter(hub, authSvc, roomSvc, msgSvc, presenceSvc, cfg.SocketRateLimit, logger)

	// --- http ---
	router := handlers.NewRouter(handlers.Deps{
		Auth:      authSvc,
		Presence:  presenceSvc,
		Rooms:     roomSvc,
		Messages:  msgSvc,
		Sockets:   sockets,
		Log:       logger,
		RateLimit: cfg.HTTPRateLimit,
		StaticDir: cfg.StaticDir,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chat server listening",
			zap.String("addr", server.Addr), zap.String("store", cfg.Store), zap.Bool("redis_bus", cfg.RedisAddr != ""))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// --- graceful shutdown ---
	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"chat-server": func(ctx context.Context) error {
			logger.Info("shutting down")
			err := server.Shutdown(ctx)
			cancel()
			return errors.Join(err, b.Close(), store.Close(ctx))
		},
	})

	served := make(chan error, 1)
	go func() { served <- g.Wait() }()

	select {
	case err := <-served:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		os.Exit(<-wait)
	case code := <-wait:
		logger.Info("server exited", zap.Int("code", code))
		_ = logger.Sync()
		os.Exit(code)
	}
}
