package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	cacheadapter "github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/ledger"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping m15 settlement core service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage_mode", cfg.StorageMode,
	)

	var (
		escrows    ports.EscrowRepository
		adminIndex ports.AdminIndexRepository
		agreements ports.PaymentAgreementRepository
		outboxRepo ports.OutboxRepository
		cleanup    = func(context.Context) {}
	)

	switch cfg.StorageMode {
	case "postgres":
		pool, connErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if connErr != nil {
			return nil, fmt.Errorf("connect postgres: %w", connErr)
		}
		sqlDB, dbErr := pool.DB()
		if dbErr != nil {
			return nil, fmt.Errorf("gorm sql db: %w", dbErr)
		}
		if migErr := postgres.RunMigrations(ctx, pool); migErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", migErr)
		}

		redisClient, redisErr := cacheadapter.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", redisErr)
		}
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping redis: %w", pingErr)
		}

		repos := postgres.NewRepositories(pool)
		escrows = repos.Escrows
		agreements = repos.Agreements
		outboxRepo = repos.Outbox
		adminIndex = cacheadapter.NewRedisAdminIndex(redisClient)
		cleanup = func(context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		}
	default:
		repos := memory.NewRepositories()
		escrows = repos.Escrows
		adminIndex = repos.AdminIndex
		agreements = repos.Agreements
		outboxRepo = repos.Outbox
	}

	// Account balances live with the platform ledger; the in-process
	// adapter stands in for it until the ledger exposes a remote surface.
	balances := ledger.NewMemoryBalanceService(cfg.LedgerMinimumBalance)

	escrowSvc := application.NewEscrowService(application.EscrowDependencies{
		Config:     application.Config{ServiceName: cfg.ServiceID},
		Escrows:    escrows,
		AdminIndex: adminIndex,
		Outbox:     outboxRepo,
		Ledger:     balances,
	})
	paymentSvc := application.NewPaymentService(application.PaymentDependencies{
		Config:      application.Config{ServiceName: cfg.ServiceID},
		Agreements:  agreements,
		Ledger:      balances,
		EscrowFunds: escrowSvc,
		Outbox:      outboxRepo,
	})

	handler := httpadapter.NewHandler(escrowSvc, paymentSvc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewHealthServer())

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		cleanup(ctx)
		_ = lis.Close()
		return nil, err
	}
	outbox := eventadapter.NewOutboxWorker(logger, outboxRepo, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn:  cleanup,
	}, nil
}

func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return eventadapter.NewLoggingPublisher(logger), nil
	}
	return eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, topicByEvent(cfg))
}

func topicByEvent(cfg Config) map[string]string {
	return map[string]string{
		domain.EventEscrowCreated:           cfg.TopicEscrowEvents,
		domain.EventEscrowFunded:            cfg.TopicEscrowEvents,
		domain.EventEscrowPaidOut:           cfg.TopicEscrowEvents,
		domain.EventEscrowClosed:            cfg.TopicEscrowEvents,
		domain.EventEscrowFrozen:            cfg.TopicEscrowEvents,
		domain.EventEscrowThawed:            cfg.TopicEscrowEvents,
		domain.EventEscrowOpenEnabled:       cfg.TopicEscrowEvents,
		domain.EventEscrowOpenDisabled:      cfg.TopicEscrowEvents,
		domain.EventEscrowAdminAdded:        cfg.TopicEscrowEvents,
		domain.EventEscrowAdminRemoved:      cfg.TopicEscrowEvents,
		domain.EventPaymentInitialized:      cfg.TopicPaymentEvents,
		domain.EventPaymentClaimed:          cfg.TopicPaymentEvents,
		domain.EventPaymentReleaseStatusSet: cfg.TopicPaymentEvents,
	}
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
