package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calv06/snag/internal/alerts"
	"github.com/calv06/snag/internal/bot"
	"github.com/calv06/snag/internal/config"
	"github.com/calv06/snag/internal/logger"
	"github.com/calv06/snag/internal/middleware"
	"github.com/calv06/snag/internal/server"
	"github.com/calv06/snag/internal/services"
	"github.com/calv06/snag/internal/util"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "snag",
		Short:        "Telegram bot that downloads media from social platforms",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: snag.yaml on the search path)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("snag %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("snag starting", zap.String("version", version))

	if err := util.CheckDependencies(log); err != nil {
		return err
	}

	lock, err := util.AcquireLock(cfg.Download.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := util.EnsureDir(cfg.Download.Dir); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if !util.HasCookies(cfg.Download.CookiesFile) {
		log.Warn("no cookies file, age-gated and private content will fail",
			zap.String("path", cfg.Download.CookiesFile))
	}

	registry := services.NewRegistry()

	sweeper := services.NewSweeper(cfg.Download.Dir, registry, cfg.Download.MaxFileAge, log)
	if n := sweeper.SweepAll(); n > 0 {
		log.Info("cleared leftover downloads", zap.Int("files", n))
	}
	sweeper.Start(cfg.Download.SweepInterval)

	sessions := services.NewSessionStore(cfg.Download.SessionTTL)
	sessions.StartCleanup(cfg.Download.SessionTTL)

	jobs := services.NewJobTracker(config.JobRetention)
	jobs.StartExpiry(config.JobRetention)

	notifier := alerts.NewNotifier(cfg.AlertToken(), cfg.Alerts.ChatID, log)
	if notifier.Enabled() {
		log.Info("admin alerts enabled", zap.Int64("chat", cfg.Alerts.ChatID))
	}

	api, err := bot.NewAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		return err
	}

	orch := services.NewOrchestrator(services.OrchestratorConfig{
		Handlers:   services.DefaultHandlers(cfg, log),
		Registry:   registry,
		Sweeper:    sweeper,
		Sessions:   sessions,
		Jobs:       jobs,
		Uploader:   services.NewGofileUploader(cfg.Upload.GofileAPI, log),
		Messenger:  bot.NewMessenger(api),
		Alerts:     notifier,
		Logger:     log.Named("orch"),
		OutputDir:  cfg.Download.Dir,
		Workers:    cfg.Download.Workers,
		JobTimeout: cfg.Download.JobTimeout,
		Qualities:  cfg.Download.Qualities,
		MinDiskGB:  cfg.Download.MinDiskGB,
	})

	tgBot := bot.New(api, orch, cfg.Download.Qualities, log.Named("bot"))

	var srv *http.Server
	var limiter *middleware.RateLimiter
	if cfg.Server.Enabled {
		srv, limiter = server.New(cfg, version, jobs, registry, log)
		go func() {
			log.Info("status server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server failed", zap.Error(err))
			}
		}()
	}

	go tgBot.Run()
	notifier.BotStarted(version)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	notifier.BotStopping()

	tgBot.Stop()
	orch.Shutdown(config.ShutdownTimeout)

	sweeper.Stop()
	sessions.Stop()
	jobs.Stop()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("status server shutdown", zap.Error(err))
		}
		limiter.Stop()
	}

	log.Info("bye")
	return nil
}
