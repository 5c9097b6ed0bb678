package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/controlplane/server"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/coordinator"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/dispatcher"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/flair"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/jobs"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/notify"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/poller"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/processor"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/reddit"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/templates"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/validate"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/config"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/persistence"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/secretstore"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/shutdown"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/syncgroup"
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "config file path (.yaml, .yml, .json)")
		envFile    = flag.String("env", ".env", "dotenv file loaded before reading secrets")
		secretDB   = flag.String("secret-db", getenv("BOT_SECRET_DB", ""), "badger secrets db path, optional")
		secretKey  = flag.String("secret-key", getenv("BOT_SECRET_KEY", ""), "badger encryption key (32 bytes base64/hex)")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	config.SetConfigPath(*configPath)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	secrets, err := loadSecrets(*secretDB, *secretKey)
	if err != nil {
		logrus.Errorf("load secrets: %v", err)
		os.Exit(1)
	}

	if err := run(cfg, secrets); err != nil {
		logrus.Errorf("bot exited with error: %v", err)
		os.Exit(1)
	}
}

func loadSecrets(dbPath, rawKey string) (*config.Secrets, error) {
	var store *secretstore.Store
	if strings.TrimSpace(dbPath) != "" {
		key, err := secretstore.ParseKey(rawKey)
		if err != nil {
			return nil, err
		}
		store, err = secretstore.Open(secretstore.OpenOptions{
			Path:          dbPath,
			EncryptionKey: key,
			ReadOnly:      true,
		})
		if err != nil {
			return nil, err
		}
		defer store.Close()
	}
	return config.LoadSecrets(store)
}

func run(cfg *config.Config, secrets *config.Secrets) error {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	manager := shutdown.NewManager()

	stateDB, err := persistence.OpenBadger(filepath.Join(cfg.DataDir, "state.badger"))
	if err != nil {
		return err
	}
	manager.OnShutdown(func(ctx context.Context) {
		if err := stateDB.Close(); err != nil {
			logrus.Warnf("close state db: %v", err)
		}
	})

	client := reddit.NewClient(reddit.Credentials{
		ClientID:     secrets.RedditClientID,
		ClientSecret: secrets.RedditClientSecret,
		Username:     secrets.RedditUsername,
		Password:     secrets.RedditPassword,
		UserAgent:    secrets.RedditUserAgent,
	}, cfg.SubredditName)

	notifier := notify.NewPushover(secrets.PushoverAppToken, secrets.PushoverUserToken)
	if !notifier.Enabled() {
		logrus.Info("pushover not configured, operator alerts disabled")
	}

	metadata := flair.NewMetadata(client, 6*time.Hour)
	templateSource := templates.NewSource(client, cfg.TemplatesDir, time.Hour)
	clock := ports.ClockFunc(time.Now)

	coord := coordinator.New(client, metadata, stateDB.NewStore("coordinator", cfg.SubredditName, "state"), coordinator.Options{
		MaxCachedResults: cfg.Coordinator.MaxCachedResults,
		RotateAfter:      cfg.Coordinator.RotateAfter,
	})

	validator := validate.New(client, metadata, clock)

	poll := poller.New(client, nil, metadata, notifier, stateDB.NewStore("poller", cfg.SubredditName, "watermark"), poller.Options{
		MinDelay:         cfg.Poller.MinDelay,
		MaxDelay:         cfg.Poller.MaxDelay,
		MaxIterations:    cfg.Poller.MaxIterations,
		SeenCap:          cfg.Poller.SeenCap,
		GapScanThreshold: cfg.Poller.GapScanThreshold,
		ListingLimit:     cfg.Poller.ListingLimit,
	})
	poll.AddReloader(templateSource)

	monthly := jobs.NewMonthlyPost(client, templateSource, notifier, clock,
		cfg.SubredditName, cfg.BotUsername, cfg.MonthlyPostFlairID,
		func() {
			if err := poll.Control(poller.MsgInvalidateSubmissions); err != nil {
				logrus.Warnf("invalidate submission cache: %v", err)
			}
		})
	lock := jobs.NewLockOldThreads(client, clock)
	scheduler := jobs.NewScheduler(clock, []jobs.Entry{
		{Job: monthly, Day: 1},
		{Job: lock, Day: 5},
	})

	cp, err := server.New(server.Config{
		ListenAddr: cfg.ControlPlane.ListenAddr,
		DBPath:     cfg.ControlPlane.DBPath,
	}, server.Deps{})
	if err != nil {
		return err
	}
	manager.OnShutdown(func(ctx context.Context) {
		if err := cp.Close(); err != nil {
			logrus.Warnf("close control plane: %v", err)
		}
	})

	proc := processor.New(client, validator, coord, templateSource, notifier, cp)
	disp := dispatcher.New(rootCtx, proc, 200)
	poll.SetDispatcher(disp)
	cp.SetDeps(server.Deps{
		Poller:      poll,
		Coordinator: coord,
		Dispatcher:  disp,
		Scheduler:   scheduler,
	})

	errCh := make(chan error, 3)
	runners := syncgroup.New()
	runners.Add(func() { errCh <- poll.Run(rootCtx) })
	runners.Add(func() { errCh <- scheduler.Run(rootCtx) })
	runners.Add(func() { errCh <- cp.Start(rootCtx) })
	runners.Run()

	logrus.WithFields(logrus.Fields{
		"subreddit": cfg.SubredditName,
		"bot":       cfg.BotUsername,
	}).Info("trade confirmation bot started")

	select {
	case sig := <-sigCh:
		logrus.Infof("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logrus.Errorf("component failed: %v", err)
		}
	}

	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := disp.Drain(drainCtx); err != nil {
		logrus.Warnf("dispatcher drain: %v", err)
	}
	runners.Wait()
	manager.Shutdown(drainCtx)
	logrus.Info("shutdown complete")
	return nil
}
