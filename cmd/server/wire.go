package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/config"
	"github.com/subremind/backend/internal/repository"
	"github.com/subremind/backend/internal/service"
	"github.com/subremind/backend/pkg/crypto"
	"github.com/subremind/backend/pkg/messenger"
)

type app struct {
	cfg *config.Config
	log *logrus.Logger
	db  *pgxpool.Pool

	registry  *prometheus.Registry
	transport messenger.Transport
	telegram  *messenger.TelegramClient

	sweepRepo *repository.SweepRepository

	auth          *service.AuthService
	subscriptions *service.SubscriptionService
	sessions      *service.SessionStore
	linking       *service.LinkingService
	reminders     *service.ReminderService
	scheduler     *service.Scheduler
	stats         *service.StatsService
}

func wireApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("encryption: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	a := &app{cfg: cfg, log: log, db: db, registry: registry}

	if cfg.TelegramToken != "" {
		a.telegram, err = messenger.NewTelegramClient(cfg.TelegramAPIURL, cfg.TelegramToken, &http.Client{Timeout: cfg.DispatchTimeout * 2})
		if err != nil {
			db.Close()
			return nil, err
		}
		a.transport = a.telegram
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, messages are only logged")
		a.transport = messenger.NewLogTransport(log)
	}

	accounts := repository.NewAccountRepository(db)
	subs := repository.NewSubscriptionRepository(db)
	identities := repository.NewIdentityRepository(db, enc)
	a.sweepRepo = repository.NewSweepRepository(db)

	clock := service.NewBillingClock(service.SystemClock{}, cfg.Location)
	dispatcher := service.NewDispatcher(a.transport, cfg.DispatchTimeout, log, metrics)

	a.auth = service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, accounts, identities, log)
	a.subscriptions = service.NewSubscriptionService(subs, log)
	a.sessions = service.NewSessionStore(cfg.LinkSessionMax, cfg.LinkSessionTTL)
	a.linking = service.NewLinkingService(accounts, identities, a.sessions, log, metrics)
	a.reminders = service.NewReminderService(subs, identities, clock, dispatcher, log, service.ReminderOptions{
		MaxConcurrent: cfg.MaxConcurrentDispatches,
		Journal:       a.sweepRepo,
		Metrics:       metrics,
	})

	a.scheduler, err = service.NewScheduler(a.reminders, cfg.Location,
		cfg.ResetTriggerTime.CronSpec(), cfg.LookaheadTriggerTime.CronSpec(), log)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.stats = service.NewStatsService(repository.NewStatsRepository(db), a.sessions, a.scheduler)

	return a, nil
}

func (a *app) Close() {
	a.db.Close()
}
