package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"remitflow/internal/notification"
	"remitflow/internal/payment"
	"remitflow/internal/payment/channel"
	paymenthandler "remitflow/internal/payment/handler"
	paymentmetrics "remitflow/internal/payment/metrics"
	"remitflow/internal/payment/orchestrator"
	"remitflow/internal/payment/provider"
	"remitflow/internal/payment/returnstate"
	"remitflow/internal/platform/config"
	"remitflow/internal/platform/httpserver"
	"remitflow/internal/platform/logger"
	"remitflow/internal/platform/metrics"
	redisClient "remitflow/internal/platform/redis"
	transferhandler "remitflow/internal/transfer/handler"
	transfermetrics "remitflow/internal/transfer/metrics"
	"remitflow/internal/transfer/receipt"
	"remitflow/internal/transfer/service"
	"remitflow/internal/transfer/store"
	httptransport "remitflow/internal/transport/http"
)

const sweepInterval = time.Minute

// infra bundles the connections main owns and must close on the way out.
type infra struct {
	redis *redisClient.Client
	db    *sql.DB
	kafka *notification.KafkaDispatcher
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("remitflow exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &infra{}
	defer deps.close()

	rc, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	deps.redis = rc

	checks := map[string]httptransport.HealthCheck{}

	var (
		sessions    service.Store
		ledger      channel.Ledger
		memSessions *store.InMemoryStore
	)
	if rc != nil {
		sessions = store.NewRedisStore(rc.Client, cfg.SessionTTL)
		ledger = channel.NewRedisLedger(rc.Client, cfg.SessionTTL)
		checks["redis"] = rc.Health
		log.Info("using redis session store")
	} else {
		memSessions = store.NewInMemoryStore(cfg.SessionTTL)
		sessions = memSessions
		ledger = channel.NewMemoryLedger(cfg.SessionTTL)
		log.Info("REDIS_URL not set, using in-memory session store")
	}

	var receipts service.ReceiptStore = receipt.NewInMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		deps.db = db
		pg := receipt.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure receipt schema: %w", err)
		}
		receipts = pg
		checks["postgres"] = db.PingContext
	}

	wallet, merchant := providers(cfg, log)
	signer := returnstate.NewSigner(cfg.Payment.ReturnStateKey, cfg.PublicBaseURL, cfg.Payment.ReturnStateTTL)
	payMetrics := paymentmetrics.New()

	orch, err := orchestrator.New(wallet, merchant, signer, cfg.PublicBaseURL, log,
		orchestrator.WithHostedCardMode(payment.Mode(cfg.Payment.HostedCardMode)),
		orchestrator.WithMetrics(payMetrics),
	)
	if err != nil {
		return fmt.Errorf("build payment orchestrator: %w", err)
	}

	outcomes := channel.New(ledger, nil, log, payMetrics)

	dispatcher, err := dispatcherFor(ctx, cfg.Notification, log, deps)
	if err != nil {
		return err
	}
	notifier := notification.New(dispatcher, log,
		notification.WithBuffer(cfg.Notification.Buffer),
		notification.WithTimeout(cfg.Notification.Timeout),
		notification.WithMetrics(notification.NewMetrics()),
	)

	svc := service.New(sessions, orch, outcomes, signer,
		service.WithLogger(log),
		service.WithMetrics(transfermetrics.New()),
		service.WithNotifier(notifier),
		service.WithReceiptStore(receipts),
		service.WithDefaultCurrency(cfg.Payment.DefaultCurrency),
	)
	outcomes.SetConsumer(svc)
	notifier.SetWarningSink(svc)

	router := httptransport.NewRouter(httptransport.Config{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Checks:         checks,
	}, log, metrics.New(),
		transferhandler.New(svc, log),
		paymenthandler.New(svc, cfg.AppBaseURL, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting remitflow", "addr", cfg.Addr, "sandbox", cfg.Payment.Sandbox)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return notifier.Run(gctx)
	})
	if memSessions != nil {
		g.Go(func() error {
			sweep(gctx, memSessions, log)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func providers(cfg config.Server, log *slog.Logger) (provider.Wallet, provider.Merchant) {
	if cfg.Payment.Sandbox {
		log.Warn("payment providers running in sandbox mode")
		sandbox := provider.NewSandbox(cfg.PublicBaseURL + "/sandbox")
		return sandbox, sandbox
	}
	p := cfg.Payment
	return provider.NewWalletClient(p.WalletBaseURL, p.WalletClientID, p.WalletClientSecret, p.ProviderTimeout),
		provider.NewMerchantClient(p.MerchantBaseURL, p.MerchantAPIKey, p.ProviderTimeout)
}

func dispatcherFor(ctx context.Context, cfg config.NotificationConfig, log *slog.Logger, deps *infra) (notification.Dispatcher, error) {
	switch {
	case len(cfg.KafkaBrokers) > 0:
		kd, err := notification.NewKafkaDispatcher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("connect notification kafka: %w", err)
		}
		deps.kafka = kd
		return kd, nil
	case cfg.Endpoint != "":
		return notification.NewHTTPDispatcher(cfg.Endpoint, cfg.Timeout), nil
	default:
		log.Warn("no notification sink configured, receipts will only be logged")
		return notification.NewLogDispatcher(log), nil
	}
}

// sweep evicts expired sessions from the in-memory store. Redis expires keys
// on its own.
func sweep(ctx context.Context, s *store.InMemoryStore, log *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				log.WarnContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.DebugContext(ctx, "expired sessions swept", "count", n)
			}
		}
	}
}
