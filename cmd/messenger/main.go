package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"messenger/api"
	"messenger/auth"
	"messenger/bridge"
	"messenger/contract"
	"messenger/internal"
	"messenger/observability"
	"messenger/repositories"
	"messenger/repositories/mongo"
	"messenger/runtime"
	"messenger/runtime/workers"
	"messenger/services"
	"messenger/transport/ws"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const serviceName = "messenger"

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Messenger terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// storage bundles whichever backend STORE_BACKEND selected.
type storage struct {
	store      contract.IStore
	users      contract.IUserRepository
	dependency workers.Dependency
	db         *badger.DB
	close      func()
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer runs before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Telemetry
	meter := observability.NoopMeter()
	if config.OtelEnabled {
		otelMeter, shutdown, err := observability.InitMetrics(ctx, serviceName)
		if err != nil {
			return exitRuntime, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		meter = otelMeter
	}

	// 4. Storage
	store, err := openStorage(ctx, log, config)
	if err != nil {
		return exitRuntime, err
	}
	defer store.close()
	dependencies := []workers.Dependency{store.dependency}

	// 5. Live core
	registry := runtime.NewRegistry()
	monitoring, err := observability.NewMonitoringManager(log, meter, registry.Len, config.MetricInterval)
	if err != nil {
		return exitRuntime, fmt.Errorf("metrics setup failed: %w", err)
	}
	tracker := runtime.NewPresenceTracker(log, monitoring, config.PresenceDebounce)
	registry.AddObserver(tracker)
	tracker.Subscribe(runtime.NewPresenceBroadcaster(log, registry, store.users, monitoring))

	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() { _ = rdb.Close() }()
		publisher := bridge.NewRedisPublisher(log, rdb, config.RedisChannel, config.BridgeTimeout)
		tracker.Subscribe(publisher)
		dependencies = append(dependencies, publisher)
	}
	if config.NatsURL != "" {
		nc, err := nats.Connect(config.NatsURL,
			nats.Name(serviceName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("NATS disconnected", "error", err)
			}),
		)
		if err != nil {
			return exitRuntime, fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Close()
		publisher := bridge.NewNatsPublisher(log, nc, config.NatsSubject)
		tracker.Subscribe(publisher)
		dependencies = append(dependencies, publisher)
	}

	router := runtime.NewMessageRouter(log, registry, store.store, store.users, monitoring, config.MaxContentLength)
	typing := runtime.NewTypingSignalRelay(log, registry, store.users, monitoring, config.TypingTTL)

	// 6. Services
	issuer := auth.NewTokenIssuer(config.JwtSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(log, store.users, issuer)
	chatService := services.NewChatService(log, store.store, store.users, registry, router, config.ConversationLimit)

	if config.SeedDemoUsers {
		seeded, err := authService.SeedDemoUsers(ctx, config.DemoUserNames())
		if err != nil {
			return exitRuntime, fmt.Errorf("demo seeding failed: %w", err)
		}
		for _, s := range seeded {
			log.Info("Demo user", "user_id", s.User.ID, "username", s.User.Name, "token", s.Token)
		}
	}

	// 7. Supervision
	healthServer := health.NewServer()
	sup := workers.NewSupervisor(log, config.RestartInterval).
		Add(tracker, monitoring, workers.NewHealthMonitoringWorker(log, healthServer, serviceName, config.MetricInterval, dependencies...))
	go sup.Run(ctx)

	if config.DebugPort > 0 && store.db != nil {
		inspector := internal.NewDebugHandler(store.db, "/inspect", repositories.InspectRow, func() map[string]any {
			stats := monitoring.GetLatest()
			return map[string]any{
				"online_users":       stats.OnlineUsers,
				"messages_persisted": stats.MessagesPersisted,
				"messages_delivered": stats.MessagesDelivered,
				"delivery_failures":  stats.DeliveryFailures,
			}
		})
		internal.StartDebugServer(ctx, log, config.DebugPort, inspector)
	}

	// 8. Servers
	wsHandler := ws.NewHandler(log, authService, registry, router, typing, ws.Config{
		BufferSize:     config.ConnectionBufferSize,
		AuthTimeout:    config.AuthTimeout,
		PongWait:       config.PongWait,
		WriteWait:      config.WriteWait,
		MaxMessageSize: config.MaxFrameSize,
		AllowedOrigins: config.AllowedOriginList(),
	})
	handler := api.NewHandler(log, chatService, router, monitoring, dependencies...)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           api.NewRouter(handler, authService, wsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting gRPC health server", "address", grpcAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("Server failure", "error", err)
		code = exitRuntime
	}

	// 10. Final Cleanup, in reverse order
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	for _, handle := range registry.Handles() {
		_ = handle.Close()
	}
	grpcServer.GracefulStop()
	stop()
	sup.Stop()
	log.Info("Program stopped cleanly")

	return code, err
}

func openStorage(ctx context.Context, log *slog.Logger, config internal.Config) (storage, error) {
	if config.StoreBackend == internal.StoreMongo {
		client, err := mongo.NewClient(ctx, config.MongoURI, config.MongoDatabase)
		if err != nil {
			return storage{}, fmt.Errorf("mongo connection failed: %w", err)
		}
		return storage{
			store:      client.Messages(),
			users:      client.Users(),
			dependency: client,
			close: func() {
				log.Info("Closing MongoDB...")
				_ = client.Close(context.Background())
			},
		}, nil
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return storage{}, fmt.Errorf("database opening failed: %w", err)
	}
	messages := repositories.NewMessageRepository(db, log)
	return storage{
		store:      messages,
		users:      repositories.NewUserRepository(db),
		dependency: messages,
		db:         db,
		close: func() {
			// Releases the directory lock and flushes buffers.
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		},
	}, nil
}
