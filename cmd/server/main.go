// Vish - persona-routed mental health chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/api"
	"github.com/ashureev/vish/internal/chat"
	"github.com/ashureev/vish/internal/config"
	"github.com/ashureev/vish/internal/generation"
	"github.com/ashureev/vish/internal/health"
	"github.com/ashureev/vish/internal/knowledge"
	"github.com/ashureev/vish/internal/mcp"
	"github.com/ashureev/vish/internal/prompt"
	"github.com/ashureev/vish/internal/risk"
	"github.com/ashureev/vish/internal/scheduler"
	"github.com/ashureev/vish/internal/session"
	"github.com/ashureev/vish/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcript archive.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Retrieval corpus.
	docs, err := knowledge.NewDocuments(cfg.Knowledge.UserDocsDir)
	if err != nil {
		slog.Error("Failed to initialize document storage", "error", err)
		os.Exit(1)
	}
	corpus := knowledge.NewStore(
		knowledge.WithDocuments(docs),
		knowledge.WithChunkSize(cfg.Knowledge.ChunkSize),
		knowledge.WithStoreLogger(logger),
	)
	if err := corpus.LoadStatic(ctx, cfg.Knowledge.Dir); err != nil {
		slog.Warn("Knowledge base not loaded, continuing without static resources", "dir", cfg.Knowledge.Dir, "error", err)
	}

	// Knowledge service client. The server starts whether or not it answers.
	remote := mcp.NewClient(cfg.Remote.URL,
		mcp.WithCallTimeout(cfg.Remote.Timeout),
		mcp.WithLogger(logger),
		mcp.WithBreaker(mcp.BreakerConfig{
			MaxFailures:         uint32(max(cfg.Remote.BreakerMaxFailures, 1)),
			Timeout:             cfg.Remote.BreakerTimeout,
			HalfOpenMaxRequests: 1,
		}),
	)
	connected := remote.Connect(ctx)

	reporter := health.NewReporter(logger)
	reporter.SetRemoteConnected(connected)

	// Routing.
	catalog, err := agent.DefaultCatalog()
	if err != nil {
		slog.Error("Failed to load personas", "error", err)
		os.Exit(1)
	}
	assessor := risk.NewAssessor(
		risk.WithRemote(mcp.NewRemoteAssessor(remote)),
		risk.WithLogger(logger),
	)
	sessions := session.NewRegistry(func(id string) *agent.Router {
		return agent.NewRouter(catalog, assessor, agent.WithSessionID(id), agent.WithLogger(logger))
	}, logger)

	// Generation.
	var gen generation.Generator = generation.Unconfigured{}
	if cfg.GenerationConfigured() {
		g := cfg.Generation
		openAI, err := generation.NewOpenAI(generation.Config{
			APIKey:          g.APIKey,
			InstanceName:    g.InstanceName,
			BaseURL:         g.BaseURL,
			APIVersion:      g.APIVersion,
			Deployment:      g.Deployment,
			TextDeployment:  g.TextDeployment,
			AudioDeployment: g.AudioDeployment,
			Timeout:         g.Timeout,
			MaxTokens:       g.MaxTokens,
			Temperature:     g.Temperature,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize generation client", "error", err)
			os.Exit(1)
		}
		gen = openAI
	} else {
		slog.Warn("Generation credentials missing, chat requests will fail until configured")
	}

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	svc := chat.NewService(sessions, prompt.NewComposer(corpus, cfg.Knowledge.TopK), gen,
		chat.WithRemoteContext(chat.NewRemoteContext(remote, logger)),
		chat.WithArchive(repo),
		chat.WithConversationLogger(conversationLogger),
		chat.WithLogger(logger),
	)

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Close()

	// Background jobs.
	jobs := scheduler.NewScheduler(logger)
	if err := jobs.ScheduleRetention(cfg.Transcripts.PruneSchedule, repo, cfg.Transcripts.Retention); err != nil {
		slog.Error("Failed to schedule transcript retention", "error", err)
		os.Exit(1)
	}
	if err := jobs.ScheduleReconnect(cfg.Remote.ReconnectInterval, remote, reporter.SetRemoteConnected); err != nil {
		slog.Error("Failed to schedule knowledge service reconnect", "error", err)
		os.Exit(1)
	}
	jobs.Start()
	defer jobs.Stop()
	slog.Info("Scheduler started", "retention", cfg.Transcripts.Retention, "reconnect_interval", cfg.Remote.ReconnectInterval)

	router := api.NewRouter(api.Handlers{
		Health:    api.NewHealthHandler(repo, remote, cfg, logger),
		Chat:      api.NewChatHandler(svc, limiter, repo, logger),
		Documents: api.NewDocumentsHandler(docs, logger),
		Agents:    api.NewAgentsHandler(catalog, remote, logger),
		WebSocket: api.NewWebSocketHandler(svc, limiter, cfg.AllowedOrigins(), cfg.IsDevelopment(), logger),
	}, cfg.AllowedOrigins(), cfg.IsDevelopment())

	// Generation calls can take most of a minute, so WriteTimeout sits above
	// the generation timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Generation.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		slog.Error("Failed to listen for gRPC health", "port", cfg.GRPCHealthPort, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reporter.Serve(grpcLis)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		reporter.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
