package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/client/internal/cache"
	"tempmail/client/internal/config"
	"tempmail/client/internal/counter"
	"tempmail/client/internal/health"
	"tempmail/client/internal/logger"
	"tempmail/client/internal/mailapi"
	"tempmail/client/internal/monitoring"
	"tempmail/client/internal/notify"
	"tempmail/client/internal/pool"
	"tempmail/client/internal/service"
	"tempmail/client/internal/settings"
	"tempmail/client/internal/storage"
	"tempmail/client/internal/storage/filesystem"
	"tempmail/client/internal/storage/memory"
	sqlstore "tempmail/client/internal/storage/sql"
	httptransport "tempmail/client/internal/transport/http"
	"tempmail/client/internal/view"
	"tempmail/client/internal/websocket"
)

const version = "1.0.0"

// main 启动本地临时邮箱客户端：Web API、收件箱轮询与监控列表
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting tempmail client",
		zap.String("version", version),
		zap.String("api", cfg.API.BaseURL),
		zap.Strings("domains", cfg.Mailbox.Domains),
		zap.String("log_level", cfg.Log.Level),
	)

	store, err := initializeStateStore(cfg.Storage, log)
	if err != nil {
		log.Fatal("failed to initialize state storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("state storage close warning", zap.Error(err))
		}
	}()

	metrics := monitoring.NewMetrics(nil)
	api := mailapi.NewClient(cfg.API, log)
	prefs := settings.NewStore(store, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 身份服务：域名列表以后端为准，拉取失败时使用配置
	identity := service.NewIdentityService(api, store, cfg.Mailbox, cfg.API.RemoteUsernames, log,
		service.WithClipboard(service.SystemClipboard{}),
		service.WithIdentityMetrics(metrics),
	)
	if err := identity.RefreshDomains(ctx); err != nil {
		log.Warn("failed to fetch domains from backend, using configured list", zap.Error(err))
	}

	// 先订阅再初始化，保证轮询器拿到第一个地址
	pollerAddrs, cancelPollerSub := identity.Subscribe()
	defer cancelPollerSub()
	hubAddrs, cancelHubSub := identity.Subscribe()
	defer cancelHubSub()

	if err := identity.Init(ctx); err != nil {
		// 没有地址也继续启动，用户可以在页面上重试
		log.Error("failed to initialize identity", zap.Error(err))
	}

	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)

	details := cache.NewLocalCache(200, 10*time.Minute)
	defer details.Close()

	inbox := service.NewInboxPoller(api, service.InboxPollerConfig{
		Interval:          cfg.Mailbox.PollInterval,
		InactivityTimeout: cfg.Mailbox.InactivityTimeout,
	}, details, metrics, log)
	inbox.OnUpdate(func(status service.InboxStatus) {
		wsHub.Publish(websocket.MessageTypeInboxUpdate, status)
	})
	wsHub.OnActivity(inbox.Touch)

	notifier := notify.NewMulti(log,
		notify.NewLogNotifier(log),
		notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret),
		notify.NewHubNotifier(wsHub),
	)

	workers := pool.NewWorkerPool(cfg.Lookup.Workers, cfg.Lookup.Workers*4, log)
	lookup := service.NewLookupManager(api, store, prefs, notifier, workers, service.LookupManagerConfig{
		MaxEntries:       cfg.Lookup.MaxEntries,
		FallbackInterval: cfg.Lookup.PollInterval,
	}, metrics, log)
	lookup.OnUpdate(func(views []service.LookupView) {
		wsHub.Publish(websocket.MessageTypeLookupUpdate, views)
	})
	lookup.Load()

	visitors := counter.New(cfg.Counter, log)
	defer func() { _ = visitors.Close() }()

	contact := service.NewContactService(cfg.SMTP, log)
	healthChecker := health.NewHealthChecker(store, api, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		IdentityService: identity,
		InboxPoller:     inbox,
		LookupManager:   lookup,
		Settings:        prefs,
		Counter:         visitors,
		ContactService:  contact,
		Renderer:        view.NewRenderer(),
		WebSocketHub:    wsHub,
		HealthChecker:   healthChecker,
		Metrics:         metrics,
		Logger:          log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 收件箱轮询 goroutine
	group.Go(func() error {
		return inbox.Run(groupCtx, pollerAddrs)
	})

	// 地址变化推送给前端
	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case addr, ok := <-hubAddrs:
				if !ok {
					return nil
				}
				wsHub.Publish(websocket.MessageTypeIdentityUpdate, identity.State())
				log.Debug("identity changed", zap.String("address", addr.String()))
			}
		}
	})

	// 监控列表：抓取协程池与各条目轮询
	group.Go(func() error {
		workers.Start(groupCtx)
		lookup.Start(groupCtx)
		<-groupCtx.Done()
		lookup.Stop()
		lookup.Wait()
		workers.Stop()
		log.Info("lookup pollers stopped")
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("client error", zap.Error(err))
	}

	log.Info("client exited cleanly", zap.String("last_address", identity.Current().String()))
}

// initializeStateStore 根据配置选择本地状态存储
func initializeStateStore(cfg config.StorageConfig, log *zap.Logger) (storage.StateStore, error) {
	switch cfg.Type {
	case "", "filesystem":
		store, err := filesystem.NewStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem store: %w", err)
		}
		log.Info("using filesystem storage", zap.String("path", cfg.Path))
		return store, nil

	case "sqlite", "postgres", "postgresql", "mysql":
		store, err := sqlstore.NewStore(cfg.Type, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s store: %w", cfg.Type, err)
		}
		log.Info("using database storage", zap.String("type", cfg.Type))
		return store, nil

	case "memory":
		log.Warn("using memory storage, state will be lost on exit")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unsupported storage type: %s (supported: filesystem, sqlite, postgres, mysql, memory)", cfg.Type)
}
