package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leofalp/conduit/core/chat"
	"github.com/leofalp/conduit/core/pace"
	"github.com/leofalp/conduit/core/pricing"
	"github.com/leofalp/conduit/core/tokenizer"
	"github.com/leofalp/conduit/internal/config"
	"github.com/leofalp/conduit/internal/httpapi"
	"github.com/leofalp/conduit/internal/notify"
	"github.com/leofalp/conduit/internal/objstore"
	"github.com/leofalp/conduit/internal/store/memory"
	"github.com/leofalp/conduit/internal/store/postgres"
	"github.com/leofalp/conduit/providers/llm/registry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals
		cancel()
	}()

	cfg := config.Load()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("startup failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var conversations chat.ConversationStore
	if cfg.DatabaseURL != "" {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		conversations = store
		logger.Info("using postgres conversation store")
	} else {
		conversations = memory.NewConversationStore()
		logger.Info("using in-memory conversation store")
	}

	var files chat.FileStore
	var filesDir string
	if cfg.BucketName != "" {
		store, err := objstore.NewS3Store(ctx, objstore.S3Config{
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Region:    cfg.AwsRegion,
			Bucket:    cfg.BucketName,
		})
		if err != nil {
			return err
		}
		files = store
		logger.Info("using s3 file store", "bucket", cfg.BucketName)
	} else {
		store, err := objstore.NewLocalStore(cfg.FileStoreDir, "/files")
		if err != nil {
			return err
		}
		files = store
		filesDir = store.Dir()
		logger.Info("using local file store", "dir", filesDir)
	}

	pacing := pace.Config{
		TargetChunkSize:  cfg.PaceChunkSize,
		Interval:         cfg.PaceInterval,
		MaxFlushInterval: cfg.PaceMaxFlush,
	}

	orchestrator := chat.NewOrchestrator(chat.Dependencies{
		Conversations: conversations,
		Files:         files,
		Personas:      memory.NewPersonaStore(),
		Prompts:       memory.NewPromptStore(),
		Settings:      cfg,
		Notifier:      notify.NewLogSink(logger),
		Clients:       registry.New(),
		Pricing:       pricing.NewLookup(),
		Tokenizer:     tokenizer.New(),
	}).WithPacing(pacing).WithLogger(logger)

	server := httpapi.NewServer(orchestrator, conversations, httpapi.Options{
		Addr:           ":" + cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		FilesDir:       filesDir,
		Logger:         logger,
	})

	errs := make(chan error, 1)
	go func() { errs <- server.Start() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
