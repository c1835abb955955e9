// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ramonsune/custodia-360-sub009/internal/config"
	"github.com/ramonsune/custodia-360-sub009/internal/db"
	"github.com/ramonsune/custodia-360-sub009/internal/dispatch"
	"github.com/ramonsune/custodia-360-sub009/internal/logger"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/queue"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/transport"
)

func main() {
	// No .env is fine; the OS environment decides.
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Mode)
	defer log.Sync()

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()

	transports := transport.Registry{
		model.ChannelEmail: transport.NewEmailSender(cfg),
	}
	if cfg.Mode != logger.ProductionMode {
		transports[model.ChannelSMS] = transport.NewMockSender()
	}

	d := dispatch.New(
		&repository.JobRepository{DB: conn},
		&repository.TemplateRepository{DB: conn},
		transports,
		log,
	)
	d.BatchSize = cfg.ClaimBatchSize
	d.Workers = cfg.SendWorkers
	d.SendTimeout = cfg.SendTimeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Nudge consumer: immediate dispatch of freshly enqueued jobs. Optional;
	// the poll loop below covers everything the broker misses.
	consumer, err := queue.NewConsumer(cfg.AMQPURL, log)
	if err != nil {
		log.Warn("broker unavailable, running on polling only", zap.Error(err))
	} else {
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, func(jobID int) error {
				return d.ProcessJobID(ctx, jobID)
			}); err != nil {
				log.Error("nudge consumer stopped", zap.Error(err))
			}
		}()
	}

	log.Info("worker running", zap.Duration("poll_interval", cfg.PollInterval))
	d.Run(ctx, cfg.PollInterval)
}
