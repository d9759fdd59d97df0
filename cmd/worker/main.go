package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/api"
	"github.com/LibreCodeCoop/libresign-saas/internal/config"
	"github.com/LibreCodeCoop/libresign-saas/internal/db"
	"github.com/LibreCodeCoop/libresign-saas/internal/logging"
	"github.com/LibreCodeCoop/libresign-saas/internal/metrics"
	"github.com/LibreCodeCoop/libresign-saas/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, api.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	// Register activities
	store := activity.NewStore(pool)
	w.RegisterActivity(store)

	remote := activity.NewRemote(logger, cfg.DefaultGroup)
	defer remote.Close()
	w.RegisterActivity(remote)

	monitor := activity.NewMonitor(store, remote, logger)
	w.RegisterActivity(monitor)

	// Register workflows
	w.RegisterWorkflow(workflow.ProvisionTenantWorkflow)
	w.RegisterWorkflow(workflow.DeprovisionTenantWorkflow)
	w.RegisterWorkflow(workflow.SyncTenantQuotaWorkflow)
	w.RegisterWorkflow(workflow.SyncTenantMetricsWorkflow)
	w.RegisterWorkflow(workflow.SyncAllTenantMetricsWorkflow)
	w.RegisterWorkflow(workflow.MonitorInstancesWorkflow)
	w.RegisterWorkflow(workflow.InstanceHealthCheckWorkflow)
	w.RegisterWorkflow(workflow.HealthCheckAllInstancesWorkflow)
	w.RegisterWorkflow(workflow.PurgeLoginTokensWorkflow)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", api.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "monitor-instances-cron",
			cron:     "*/5 * * * *",
			workflow: workflow.MonitorInstancesWorkflow,
		},
		{
			id:       "health-check-cron",
			cron:     "0 2 * * *",
			workflow: workflow.HealthCheckAllInstancesWorkflow,
		},
		{
			id:       "tenant-metrics-sync-cron",
			cron:     "0 3 * * *",
			workflow: workflow.SyncAllTenantMetricsWorkflow,
		},
		{
			id:       "login-token-purge-cron",
			cron:     "0 4 * * *",
			workflow: workflow.PurgeLoginTokensWorkflow,
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				TaskQueue: api.TaskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
