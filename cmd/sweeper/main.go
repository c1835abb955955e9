// cmd/sweeper/main.go
//
// Runs the three daily sweeps once and exits. An external scheduler (cron,
// platform timer) invokes this on its own cadence; missed runs are not backfilled.
package main

import (
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ramonsune/custodia-360-sub009/internal/config"
	"github.com/ramonsune/custodia-360-sub009/internal/db"
	"github.com/ramonsune/custodia-360-sub009/internal/logger"
	"github.com/ramonsune/custodia-360-sub009/internal/queue"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
	"github.com/ramonsune/custodia-360-sub009/internal/sweep"
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

	jobRepo := &repository.JobRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}
	complianceRepo := &repository.ComplianceRepository{DB: conn}
	graceRepo := &repository.GraceRepository{DB: conn}
	entityRepo := &repository.EntityRepository{DB: conn}

	var nudge service.Nudger
	publisher, err := queue.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Warn("broker unavailable, jobs wait for the worker poll", zap.Error(err))
	} else {
		defer publisher.Close()
		nudge = publisher
	}

	notify := &service.NotifyService{Jobs: jobRepo, Templates: templateRepo, Nudge: nudge, Log: log}
	now := time.Now()

	sweeps := []struct {
		name string
		run  func(time.Time) (*sweep.Result, error)
	}{
		{"compliance", (&sweep.Guard{Compliance: complianceRepo, Entities: entityRepo, Notify: notify, Log: log}).RunOnce},
		{"grace", (&sweep.Enforcer{Grace: graceRepo, Entities: entityRepo, Notify: notify, AdminEmail: cfg.AdminEmail, Log: log}).RunOnce},
		{"reminders", (&sweep.Scheduler{Entities: entityRepo, Notify: notify, Log: log}).RunOnce},
	}

	for _, s := range sweeps {
		result, err := s.run(now)
		if err != nil {
			// An aborted sweep self-heals on the next scheduled run; every
			// decision is idempotency-keyed.
			log.Error("sweep aborted", zap.String("sweep", s.name), zap.Error(err))
			continue
		}
		log.Info("sweep finished",
			zap.String("sweep", s.name),
			zap.Int("processed", result.Processed),
			zap.Strings("actions", result.Actions))
	}
}
