package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/storefront/messaging/internal/auth"
	"github.com/storefront/messaging/internal/config"
	"github.com/storefront/messaging/internal/handler"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/middleware"
	"github.com/storefront/messaging/internal/push"
	"github.com/storefront/messaging/internal/repository"
	"github.com/storefront/messaging/internal/service"
	"github.com/storefront/messaging/internal/startup"
	"github.com/storefront/messaging/internal/stream"
	"github.com/storefront/messaging/internal/ws"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	if err := run(*migrate, *dev); err != nil {
		logger.Errorf("%v", err)
		time.Sleep(100 * time.Millisecond) // дать асинхронному логгеру дописать
		os.Exit(1)
	}
}

func run(migrateOnly, dev bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Info("starting messaging service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dev {
		var embeddedDB *embeddedpostgres.EmbeddedPostgres
		embeddedDB, cfg.Database.URL, err = startup.StartEmbeddedPostgres()
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	pool, err := startup.ConnectDB(ctx, cfg.DatabaseURL(), cfg.DBMaxConnections(), 60*time.Second)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrateCtx, migrateCancel := context.WithTimeout(ctx, 30*time.Second)
	err = startup.RunMigrations(migrateCtx, pool)
	migrateCancel()
	if err != nil {
		return err
	}
	if migrateOnly {
		return nil
	}

	cache := startup.OpenCache(ctx, cfg.Cache, 30*time.Second)
	defer cache.Close()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	pushClient := push.NewClient(cfg.PushServiceURL)

	unread := service.NewUnreadCounter(cache, notifRepo, msgRepo, cfg.Cache.UnreadTTL, cfg.Cache.StaleTTL, m)
	msgSvc := service.NewMessageService(convRepo, msgRepo, userRepo, unread, pushClient, m)

	hub := ws.NewHub(msgSvc, cfg.MaxWSConnections, m)
	msgSvc.SetPublisher(hub)
	notifSvc := service.NewNotificationService(notifRepo, unread, hub, m)
	notifier := stream.NewNotifier(stream.Config{
		BaseInterval: cfg.Stream.BaseInterval,
		IdleInterval: cfg.Stream.IdleInterval,
		IdleAfter:    cfg.Stream.IdleAfter,
	}, notifSvc.UnreadCount, m)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(hubCtx)
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerIP, cfg.RateLimitPerIdentity)
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-hubCtx.Done():
				return
			case <-t.C:
				limiter.Sweep()
			}
		}
	}()

	srv := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: handler.NewRouter(handler.Deps{
			Config:        cfg,
			Resolver:      resolver(cfg),
			Messages:      msgSvc,
			Notifications: notifSvc,
			Users:         userRepo,
			Notifier:      notifier,
			Hub:           hub,
			Push:          pushClient,
			Metrics:       m,
			RateLimiter:   limiter,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			hubCancel()
			wg.Wait()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	wg.Wait()
	logger.Info("hub stopped")
	return nil
}

// resolver: JWT, затем сервис авторизации, затем гостевая сессия.
func resolver(cfg *config.Config) auth.Resolver {
	var chain []auth.Resolver
	if cfg.AuthJWTSecret != "" {
		chain = append(chain, auth.NewJWT(cfg.AuthJWTSecret))
	}
	if cfg.AuthServiceURL != "" {
		chain = append(chain, auth.NewService(cfg.AuthServiceURL, nil))
	}
	chain = append(chain, auth.Guest())
	return auth.Chain(chain...)
}
