package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"consultations/backend/internal/config"
	"consultations/backend/internal/notify"
	"consultations/backend/internal/scheduling"
	"consultations/backend/internal/service/bookings"
	"consultations/backend/internal/service/consultations"
	"consultations/backend/internal/service/parties"
	"consultations/backend/internal/store"
	"consultations/backend/internal/store/memory"
	"consultations/backend/internal/store/postgres"
	grpcTransport "consultations/backend/internal/transport/grpc"
	"consultations/backend/internal/transport/rest"
)

type stores struct {
	bookings      store.BookingRepository
	consultations store.ConsultationRepository
	parties       store.PartyDirectory
	close         func() error
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "consultations-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "consultations-server"),
	)
	slog.SetDefault(log)

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store", cfg.StoreDriver),
		slog.String("notify_sink", cfg.NotifySink),
		slog.String("log_level", cfg.LogLevel),
	)

	st, err := openStores(cfg, log)
	if err != nil {
		log.Error("store open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("store close failed", slog.Any("err", err))
		}
	}()

	sender, closeSender, err := openSender(cfg, log)
	if err != nil {
		log.Error("notification sink failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeSender(); err != nil {
			log.Warn("notification sink close failed", slog.Any("err", err))
		}
	}()

	dispatcher := notify.NewDispatcher(sender, notify.Options{
		QueueSize:     cfg.NotifyQueueSize,
		Workers:       cfg.NotifyWorkers,
		RatePerSecond: cfg.NotifyRatePerSecond,
		SendTimeout:   cfg.NotifySendTimeout,
	}, log)
	dispatcher.Start()

	bookingSvc := bookings.NewService(st.bookings, st.parties, dispatcher, bookings.Config{
		Policy:         scheduling.Policy{Duration: cfg.BookingDuration, LeadTime: cfg.BookingLeadTime},
		MeetingBaseURL: cfg.MeetingBaseURL,
		MeetingPrefix:  cfg.MeetingPrefix,
	}, bookings.WithLogger(log))
	consultSvc := consultations.NewService(st.consultations, st.bookings, st.parties, consultations.WithLogger(log))
	partySvc := parties.NewService(st.parties, log)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterConsultationServiceServer(grpcServer, grpcTransport.NewServer(bookingSvc, consultSvc, partySvc, log))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcTransport.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: rest.NewRouter(rest.Services{
			Bookings:      bookingSvc,
			Consultations: consultSvc,
			Parties:       partySvc,
		}, rest.Options{
			CORSOrigins:   cfg.HTTPCORSOrigins,
			RatePerSecond: cfg.HTTPRatePerSecond,
			RateBurst:     cfg.HTTPRateBurst,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, httpServer, dispatcher, cfg.ShutdownTimeout)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("stopped")
}

func openStores(cfg config.Config, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
			SlowQuery:       cfg.DBSlowQuery,
			Logger:          log,
		})
		if err != nil {
			args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
			log.Error("database connection failed", args...)
			return stores{}, err
		}
		return stores{
			bookings:      postgres.NewBookingRepo(db),
			consultations: postgres.NewConsultationRepo(db),
			parties:       postgres.NewPartyRepo(db),
			close:         func() error { return postgres.Close(db) },
		}, nil
	default:
		m := memory.New()
		return stores{bookings: m, consultations: m, parties: m, close: func() error { return nil }}, nil
	}
}

func openSender(cfg config.Config, log *slog.Logger) (notify.Sender, func() error, error) {
	switch cfg.NotifySink {
	case config.SinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("publishing notifications to redis", slog.String("channel", cfg.NotifyRedisChannel))
		return notify.NewRedisSender(client, cfg.NotifyRedisChannel), client.Close, nil
	case config.SinkAsynq:
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		log.Info("enqueueing notifications to asynq", slog.String("queue", cfg.NotifyAsynqQueue))
		return notify.NewAsynqSender(client, cfg.NotifyAsynqQueue), client.Close, nil
	default:
		return notify.NewLogSender(log), func() error { return nil }, nil
	}
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// shutdown stops intake on both servers before draining queued notifications.
func shutdown(log *slog.Logger, gs *grpc.Server, hs *http.Server, d *notify.Dispatcher, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := hs.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		gs.Stop()
	}

	if err := d.Close(ctx); err != nil {
		log.Warn("notification drain incomplete", slog.Any("err", err))
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
