package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/config"
	"chatsync/internal/constants"
	"chatsync/internal/database"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/retry"
	"chatsync/internal/service"
	"chatsync/internal/timeline"
	"chatsync/internal/tracing"
	"chatsync/internal/validation"
	"chatsync/pkg/backend"
	"chatsync/pkg/transport"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose     = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath  = flag.String("config", "config.json", "Path to configuration file")
	version     = flag.Bool("version", false, "Show version information")
	phone       = flag.String("phone", "", "Phone number of the conversation to open")
	interactive = flag.Bool("interactive", false, "Send stdin lines as messages and print the timeline on every change")
)

type options struct {
	configPath  string
	phone       string
	verbose     bool
	interactive bool
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatsync %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath:  *configPath,
		phone:       *phone,
		verbose:     *verbose,
		interactive: *interactive,
	}
	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if opts.interactive {
		// stdout belongs to the timeline
		logger.SetOutput(os.Stderr)
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting chatsync")

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configureLogLevel(logger, cfg.LogLevel, opts.verbose)

	if err := validation.ValidatePhoneNumber(opts.phone); err != nil {
		return fmt.Errorf("invalid -phone: %w", err)
	}

	loc := time.Local
	if cfg.Timeline.Location != "" {
		if loc, err = time.LoadLocation(cfg.Timeline.Location); err != nil {
			return fmt.Errorf("failed to load timeline location: %w", err)
		}
	}

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	registry := metrics.NewRegistry()
	retryConfig := retry.ConfigFromModel(cfg.Retry)

	db, err := openDatabase(ctx, cfg, retryConfig, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	backendClient := backend.NewClientWithLogger(backend.Config{
		BaseURL:            cfg.Backend.APIBaseURL,
		Timeout:            time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond,
		RetryCount:         cfg.Backend.RetryCount,
		BreakerMaxFailures: uint32(cfg.Backend.BreakerMaxFailures),
		BreakerTimeout:     time.Duration(cfg.Backend.BreakerTimeoutSec) * time.Second,
		Backoff:            retryConfig,
		Metrics:            registry,
	}, logger)

	directory := service.NewChatDirectoryWithConfig(db, backendClient, logger, service.DirectoryConfig{
		CacheHours: cfg.Database.CacheHours,
		PageLimit:  cfg.Backend.PageLimit,
		SyncDelay:  constants.DefaultChatSyncDelayMs * time.Millisecond,
	})

	sendTimeout := time.Duration(cfg.Transport.SendTimeoutMs) * time.Millisecond
	transportClient := transport.NewClientWithLogger(transport.Config{
		BaseURL:      cfg.Transport.WSBaseURL,
		Phone:        opts.phone,
		DialTimeout:  time.Duration(cfg.Transport.DialTimeoutMs) * time.Millisecond,
		SendTimeout:  sendTimeout,
		PingInterval: time.Duration(cfg.Transport.PingIntervalSec) * time.Second,
		ReadLimit:    cfg.Transport.ReadLimit,
		EventBuffer:  cfg.Transport.EventBuffer,
		Backoff:      retryConfig,
		Metrics:      registry,
	}, logger)

	reconciler := timeline.NewReconcilerWithConfig(service.NewTransportOutbox(transportClient, sendTimeout), logger, timeline.Config{
		LocalSender: cfg.Timeline.LocalSender,
		Location:    loc,
		Metrics:     registry,
	})

	session := service.NewConversationSession(service.SessionConfig{
		Phone:     opts.phone,
		Directory: directory,
		Metrics:   registry,
		Verbose:   opts.verbose,
	}, reconciler, transportClient, backendClient, logger)

	monitor := service.NewStalePendingMonitor(reconciler,
		constants.DefaultStaleCheckIntervalSec*time.Second,
		time.Duration(cfg.Timeline.StalePendingSec)*time.Second,
		registry, logger)
	scheduler := service.NewScheduler(directory, cfg.RetentionDays, cfg.Server.CleanupIntervalHours, logger)

	watcher := config.NewConfigWatcher(opts.configPath, logger)
	watcher.OnConfigChange(config.ApplyLogLevel(logger, opts.verbose))

	server := NewServer(cfg.Server, session, directory, db, registry, logger)

	ctx, cancel := context.WithCancel(service.WithVerbose(ctx, opts.verbose))
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := session.Open(gctx); err != nil && gctx.Err() == nil {
			apperrors.WrapLogger(logger).LogRetryableError(err, "Conversation is running without a connection")
		}
		return nil
	})

	g.Go(func() error {
		saved, err := directory.SyncChats(gctx)
		if err != nil && gctx.Err() == nil {
			logger.WithError(err).Warn("Failed to sync chat directory")
			return nil
		}
		logger.WithField(service.LogFieldCount, saved).Info("Completed chat directory sync")
		return nil
	})

	g.Go(func() error {
		monitor.Start(gctx)
		return nil
	})

	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})

	g.Go(func() error {
		if err := watcher.Start(gctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
		return nil
	})

	if opts.interactive {
		g.Go(func() error {
			defer cancel()
			return runInteractive(gctx, session, stdin, stdout, loc)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
		defer cancelShutdown()

		if err := session.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close conversation session")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server shutdown completed")
	return nil
}

// openDatabase retries opening the cache; a locked file usually clears quickly.
func openDatabase(ctx context.Context, cfg *models.Config, retryConfig retry.BackoffConfig, logger *logrus.Logger) (*database.Database, error) {
	retryConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts

	var db *database.Database
	err := retry.NewBackoff(retryConfig).Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}

// configureLogLevel applies the configured level; verbose forces debug.
func configureLogLevel(logger *logrus.Logger, level string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}
