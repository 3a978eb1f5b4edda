package main

import (
	"chat-relay/auth"
	grpcserver "chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until a signal arrives and returns the first fatal error.
// Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// 4. Persistence under supervision
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	chatRepository := repositories.NewChatRepository(db)
	queue := workers.NewPersistQueue(config.PersistBuffer)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	for range config.PersistWorkers {
		sup.Add(workers.NewPersistWorker(log, queue, messageRepository, config.PersistTimeout, metrics))
	}
	sup.Add(workers.NewCapacityWorker(log, []workers.NamedQueue{{Name: "persist", Queue: queue}},
		metrics, config.MetricInterval))

	// 5. Routing core
	routerOpts := []runtime.RouterOption{runtime.WithMetrics(metrics)}
	if config.CensoredWordsDir != "" {
		moderator, err := loadModerator(log, config)
		if err != nil {
			return err
		}
		routerOpts = append(routerOpts, runtime.WithCensor(moderator))
	}
	if config.VerifyMembership {
		routerOpts = append(routerOpts, runtime.WithMembershipCheck(chatRepository))
	}

	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()
	router := runtime.NewChatRouter(log, registry, presence, queue, routerOpts...)
	relay := runtime.NewSignalingRelay(log, registry, runtime.NewCallTracker(log), metrics)
	resolver := auth.NewTokenResolver(auth.NewTokenService(config.JwtSecret, config.JwtIssuer))
	lifecycle := runtime.NewLifecycle(log, runtime.LifecycleConfig{
		OutboxSize:             config.ConnectionBuffer,
		EventRate:              config.EventRate,
		EventBurst:             config.EventBurst,
		StrictPresenceIdentity: config.StrictPresence,
	}, resolver, registry, presence, router, relay, metrics)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sup.Run(gctx)
		return nil
	})

	// 7. Listeners
	mux := http.NewServeMux()
	mux.Handle(config.WsPath, ws.NewServer(log, lifecycle, ws.Config{
		WriteTimeout:   config.WriteTimeout,
		PingInterval:   config.PingInterval,
		AllowedOrigins: config.Origins(),
	}))
	wsServer := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	wsListener, err := net.Listen("tcp", config.WsAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.WsAddress, err)
	}
	g.Go(func() error {
		log.Info("Starting websocket server", "address", config.WsAddress, "path", config.WsPath)
		if err := wsServer.Serve(wsListener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server error: %w", err)
		}
		return nil
	})

	var grpcServer *grpc.Server
	if config.GrpcAddress != "" {
		grpcListener, err := net.Listen("tcp", config.GrpcAddress)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", config.GrpcAddress, err)
		}
		grpcServer = grpcserver.NewGrpcServer(log, lifecycle, resolver)
		g.Go(func() error {
			log.Info("Starting gRPC server", "address", config.GrpcAddress)
			if err := grpcServer.Serve(grpcListener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server error: %w", err)
			}
			return nil
		})
	}

	var admin *internal.AdminServer
	var adminServer *http.Server
	if config.AdminAddress != "" {
		admin = internal.NewAdminServer(log, reg,
			internal.WithMembership(chatRepository),
			internal.WithHistory(messageRepository),
			internal.WithInspector(db))
		adminServer = admin.NewHTTPServer(config.AdminAddress)
		g.Go(func() error {
			log.Info("Starting admin server", "address", config.AdminAddress)
			if err := adminServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server error: %w", err)
			}
			return nil
		})
		admin.SetReady(true)
	}

	// 8. Wait for Stop or Error, then drain
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		if admin != nil {
			admin.SetReady(false)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
		defer cancel()

		_ = wsServer.Shutdown(shutdownCtx)
		lifecycle.CloseAll()
		if grpcServer != nil {
			stopGrpc(shutdownCtx, log, grpcServer)
		}
		if adminServer != nil {
			_ = adminServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	err = g.Wait()
	log.Info("Program stopped cleanly", "pending_messages", queue.Len())
	return err
}

func loadModerator(log *slog.Logger, config internal.Config) (*moderation.Moderator, error) {
	data, err := moderation.NewCensoredLoader(os.DirFS(config.CensoredWordsDir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("censored words loading failed: %w", err)
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	moderator, err := moderation.NewModerator(data.Words, replacement, log)
	if err != nil {
		return nil, fmt.Errorf("moderator build failed: %w", err)
	}
	log.Info("Moderation enabled", "words", len(data.Words), "languages", data.Languages)
	return moderator, nil
}

// stopGrpc waits for streams to finish, forcing termination past the deadline.
func stopGrpc(ctx context.Context, log *slog.Logger, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		log.Info("gRPC server stopped")
	case <-ctx.Done():
		log.Warn("graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
