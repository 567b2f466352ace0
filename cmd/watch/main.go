// Command watch follows a relay's status feed and logs every update.
//
//	watch [relay-url]
//
// The relay URL defaults to http://localhost:$SERVER_PORT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/koios/octodash/internal/config"
	"github.com/koios/octodash/internal/feed"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	base := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	if len(os.Args) > 1 {
		base = os.Args[1]
	}

	feedURL, err := feed.FeedURL(base)
	if err != nil {
		logger.Fatal("Invalid relay URL", zap.Error(err))
	}

	sub := feed.NewSubscriber(feedURL, cfg.Feed.ReconnectDelay, logger)
	sub.OnStateChange(func(s feed.State) {
		logger.Info("Feed state changed", zap.Stringer("state", s))
	})
	sub.OnUpdate(func(u *models.Update) {
		logUpdate(logger, u)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching relay feed", zap.String("url", feedURL), zap.Duration("reconnect_delay", cfg.Feed.ReconnectDelay))
	if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Feed stopped", zap.Error(err))
	}
}

func logUpdate(logger *zap.Logger, u *models.Update) {
	fields := []zap.Field{}

	if st := u.Data.Status; st != nil {
		fields = append(fields, zap.String("state", st.State.Text))
		for name, t := range st.Temperature {
			if t.Actual != nil {
				fields = append(fields, zap.Float64(name, *t.Actual))
			}
		}
	}

	if job := u.Data.Job; job != nil {
		if job.Job.File.Name != nil {
			fields = append(fields, zap.String("file", *job.Job.File.Name))
		}
		if job.Progress.Completion != nil {
			fields = append(fields, zap.Float64("completion", *job.Progress.Completion))
		}
		if job.Progress.PrintTimeLeft != nil {
			fields = append(fields, zap.Int64("print_time_left", int64(*job.Progress.PrintTimeLeft)))
		}
	}

	logger.Info("Printer update", fields...)
}
