package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonhoo/buzz/internal/config"
	"github.com/jonhoo/buzz/internal/credential"
	"github.com/jonhoo/buzz/internal/email"
	"github.com/jonhoo/buzz/internal/notify"
	"github.com/jonhoo/buzz/internal/status"
	"github.com/jonhoo/buzz/internal/tray"
	"github.com/jonhoo/buzz/internal/watch"
)

const (
	eventBuffer   = 64
	shutdownGrace = 10 * time.Second
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
	configPath  = flag.String("config", "", "Path to the configuration file")
	noTray      = flag.Bool("no-tray", false, "Run without a tray icon, notifications only")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("buzz version %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *noTray {
		err = run(ctx, cfg, logger, status.NopSink{})
	} else {
		err = tray.Run(cancel, cfg.Icons, logger, func(t *tray.Tray) error {
			return run(ctx, cfg, logger, t)
		})
	}
	if err != nil {
		logger.WithError(err).Fatal("Watcher error")
	}
	logger.Info("Shut down")
}

// run wires the watchers, aggregator and dispatcher together and blocks
// until ctx is cancelled and the watchers have drained (or the shutdown
// grace period elapses).
func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger, sink status.Sink) error {
	events := make(chan watch.Event, eventBuffer)
	resolver := credential.NewResolver()
	dispatcher := notify.NewDispatcher(cfg.Accounts, logger)
	aggregator := status.NewAggregator(cfg.AccountNames(), events, sink, dispatcher, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return aggregator.Run(gctx)
	})

	for i := range cfg.Accounts {
		account := cfg.Accounts[i]
		connector := email.NewConnector(account, resolver, logger)
		watcher := watch.New(watch.Config{
			Account:     account.Name,
			IdleTimeout: cfg.IdleTimeout(),
		}, watch.ConnectorFunc(func(ctx context.Context) (watch.Session, error) {
			sess, err := connector.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return sess, nil
		}), events, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	logger.WithField("accounts", len(cfg.Accounts)).Info("Watching for new mail")

	<-gctx.Done()

	// Watchers abort any outstanding IDLE and log out on cancellation; give
	// them a bounded grace period before exiting regardless.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(shutdownGrace):
		logger.Warn("Shutdown grace period elapsed, exiting without clean logout")
		return nil
	}
}
