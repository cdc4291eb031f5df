package main

import (
	"context"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/config"
	"github.com/cortexui/dashboard/internal/handlers"
	"github.com/cortexui/dashboard/internal/m365"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/probe"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/google/uuid"
)

// auditRetention is how long audit entries are kept.
const auditRetention = 90 * 24 * time.Hour

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	deps      *handlers.Deps
	audit     *models.AuditStore
	locks     *models.SchedulerLocks
	scheduler *services.Scheduler
}

// bootstrap initializes all application dependencies: database, backend
// client, sessions and the housekeeping jobs.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	api := apiclient.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	sessions := session.NewManager(session.NewGormRepository(models.GetDB()), api, session.Options{
		Secret:         cfg.Session.Secret,
		TTL:            cfg.Session.TTL,
		NotifyCapacity: cfg.Notify.Capacity,
		NotifyTTL:      cfg.Notify.TTL,
	})

	renderer, err := handlers.NewRenderer()
	if err != nil {
		logger.Fatalf("Failed to load templates: %v", err)
	}

	hub := services.NewStatusHub()
	monitor := services.NewBackendMonitor(api, cfg.Backend.PingInterval, hub)
	broker := m365.NewBroker(cfg.Server.PublicURL, cfg.Setup.M365Timeout, api)

	smtpProbe := probe.NewSMTP()
	smtpProbe.Timeout = cfg.Setup.ProbeTimeout

	deps := &handlers.Deps{
		Config:        cfg,
		API:           api,
		Sessions:      sessions,
		Broker:        broker,
		Monitor:       monitor,
		Hub:           hub,
		Renderer:      renderer,
		DatabaseProbe: probe.NewDatabase(),
		SMTPProbe:     smtpProbe,
		MatomoProbe:   probe.NewMatomo(cfg.Setup.ProbeTimeout),
	}

	svc := &appServices{
		cfg:       cfg,
		deps:      deps,
		audit:     models.NewAuditStore(models.GetDB()),
		locks:     models.NewSchedulerLocks(models.GetDB(), uuid.NewString(), 48*time.Hour),
		scheduler: services.NewScheduler(),
	}
	svc.startJobs()
	return svc
}

// startJobs schedules the housekeeping jobs and runs the first backend check
// right away so pages do not start without a status.
func (s *appServices) startJobs() {
	monitor := s.deps.Monitor
	go monitor.Check(context.Background())

	jobs := []struct {
		name, spec string
		fn         func()
	}{
		{"backend-ping", monitor.Spec(), func() { monitor.Check(context.Background()) }},
		{"session-purge", "@every 15m", services.Exclusive(s.locks, "session-purge", 15*time.Minute, func() {
			n, err := s.deps.Sessions.Purge(context.Background())
			if err != nil {
				logger.Warn().Err(err).Msg("[Scheduler] session purge failed")
				return
			}
			if n > 0 {
				logger.Info().Int64("count", n).Msg("[Scheduler] expired sessions purged")
			}
		})},
		{"m365-sweep", "@every 5m", func() {
			if n := s.deps.Broker.Sweep(); n > 0 {
				logger.Info().Int("count", n).Msg("[Scheduler] abandoned m365 attempts dropped")
			}
		}},
		{"audit-purge", "@daily", services.Exclusive(s.locks, "audit-purge", 24*time.Hour, func() {
			n, err := models.PurgeAuditEntries(models.GetDB(), auditRetention)
			if err != nil {
				logger.Warn().Err(err).Msg("[Scheduler] audit purge failed")
				return
			}
			logger.Info().Int64("count", n).Msg("[Scheduler] old audit entries purged")
		})},
		{"lock-purge", "@daily", func() {
			if _, err := s.locks.Purge(); err != nil {
				logger.Warn().Err(err).Msg("[Scheduler] lock purge failed")
			}
		}},
	}
	for _, j := range jobs {
		if err := s.scheduler.Add(j.name, j.spec, j.fn); err != nil {
			logger.Fatalf("Failed to schedule %s: %v", j.name, err)
		}
	}
	s.scheduler.Start()
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("All schedulers stopped")

	if err := models.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close database")
	}
}
