// cmd/server/main.go
package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ramonsune/custodia-360-sub009/internal/config"
	"github.com/ramonsune/custodia-360-sub009/internal/db"
	"github.com/ramonsune/custodia-360-sub009/internal/handler"
	"github.com/ramonsune/custodia-360-sub009/internal/logger"
	"github.com/ramonsune/custodia-360-sub009/internal/queue"
	"github.com/ramonsune/custodia-360-sub009/internal/ratelimit"
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
		log.Warn("broker unavailable, dispatch runs on polling only", zap.Error(err))
	} else {
		defer publisher.Close()
		nudge = publisher
	}

	notify := &service.NotifyService{Jobs: jobRepo, Templates: templateRepo, Nudge: nudge, Log: log}
	compliance := &service.ComplianceService{Compliance: complianceRepo, Log: log}
	accounts := &service.AccountService{Grace: graceRepo, Log: log}

	h := &handler.Handler{
		Notify:     notify,
		Compliance: compliance,
		Accounts:   accounts,
		Templates:  templateRepo,
		Guard:      &sweep.Guard{Compliance: complianceRepo, Entities: entityRepo, Notify: notify, Log: log},
		Enforcer:   &sweep.Enforcer{Grace: graceRepo, Entities: entityRepo, Notify: notify, AdminEmail: cfg.AdminEmail, Log: log},
		Scheduler:  &sweep.Scheduler{Entities: entityRepo, Notify: notify, Log: log},
		Log:        log,
	}

	limiter := ratelimit.Middleware(ratelimit.Policy{
		Name:   "jobs:enqueue",
		Limit:  cfg.RateLimit,
		Window: cfg.RateLimitWindow,
	}, ratelimit.NewPostgresStore(conn), log)

	log.Info("🚀 server running", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, h.Routes(limiter)); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
