// Package app builds heirloom's object graph from configuration and owns the
// lifecycle of its external connections.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"heirloom/internal/jobs"
	"heirloom/internal/legacy"
	legacymetrics "heirloom/internal/legacy/metrics"
	"heirloom/internal/membership"
	membershipadapters "heirloom/internal/membership/adapters"
	membershipmetrics "heirloom/internal/membership/metrics"
	"heirloom/internal/ops/handler"
	"heirloom/internal/outbox"
	"heirloom/internal/person"
	personmetrics "heirloom/internal/person/metrics"
	"heirloom/internal/plans"
	"heirloom/internal/platform/config"
	"heirloom/internal/platform/httpserver"
	"heirloom/internal/platform/kafka"
	"heirloom/internal/platform/metrics"
	"heirloom/internal/platform/postgres"
	"heirloom/internal/platform/postgres/migrations"
	platformredis "heirloom/internal/platform/redis"
	"heirloom/internal/succession"
	"heirloom/internal/succession/adapters/archive"
	branchreader "heirloom/internal/succession/adapters/branch"
	"heirloom/internal/succession/adapters/notifier"
	successionmetrics "heirloom/internal/succession/metrics"
	"heirloom/internal/succession/ports"
	"heirloom/pkg/platform/audit/publishers/compliance"
	"heirloom/pkg/platform/circuit"
)

// App is the wired application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Persons     *person.Service
	Memberships *membership.Service
	Succession  *succession.Service
	Legacy      *legacy.Service
	Scheduler   *jobs.Scheduler

	relay    *outbox.Relay
	router   http.Handler
	db       *sql.DB
	redis    *platformredis.Client
	producer *kafka.Producer
}

// New connects to every configured backend and wires the services. The
// caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	catalog := plans.Default()
	if cfg.Plans.CatalogPath != "" {
		loaded, err := plans.Load(cfg.Plans.CatalogPath)
		if err != nil {
			return fmt.Errorf("loading plan catalog: %w", err)
		}
		catalog = loaded
	}

	st := memoryStores()
	if cfg.Database.Driver == "postgres" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		a.db = db
		status, err := migrations.CurrentStatus(db)
		if err != nil {
			return err
		}
		if !status.UpToDate() {
			return fmt.Errorf("database schema at version %d (dirty=%t), binary expects %d: run `heirloom migrate up`",
				status.Version, status.Dirty, status.Latest)
		}
		st = postgresStores(db, postgres.NewTxRunner(db, cfg.Database.TxTimeout))
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.redis = redisClient

	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	a.producer = producer
	if producer != nil {
		if err := kafka.EnsureTopics(ctx, producer.Client(), 1, 1, kafka.Topics(cfg.Kafka)...); err != nil {
			a.logger.WarnContext(ctx, "kafka topic provisioning failed", "error", err)
		}
	}

	platformMetrics := metrics.New()
	publisher := compliance.New(st.audit,
		compliance.WithLogger(a.logger),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	a.Memberships = membership.NewService(membership.Stores{
		Groves:        st.groves,
		Memberships:   st.memberships,
		Subscriptions: st.subscriptions,
		Persons:       st.persons,
	}, catalog, st.runner, a.logger, publisher, membershipmetrics.New())

	reader := membershipadapters.NewPersonReader(st.memberships, st.groves, st.subscriptions)
	a.Persons = person.NewService(st.persons, st.accounts, reader, st.runner, a.logger, publisher, personmetrics.New())

	a.Legacy = legacy.NewService(st.branches, st.managers, st.runner, a.logger, publisher, legacymetrics.New())

	a.Succession, err = succession.NewService(succession.Deps{
		Heirs:    st.heirs,
		Branches: branchreader.NewReader(st.branches),
		Archives: a.archiveGenerator(),
		Notifier: a.notifier(),
	}, st.runner, cfg.Succession.DemoMode, a.logger, publisher, successionmetrics.New())
	if err != nil {
		return fmt.Errorf("wiring succession: %w", err)
	}

	schedulerOpts := []jobs.Option{jobs.WithLogger(a.logger), jobs.WithMetrics(platformMetrics)}
	if a.redis != nil {
		locker := platformredis.NewLocker(a.redis, "heirloom:lock:")
		schedulerOpts = append(schedulerOpts, jobs.WithLocker(locker, cfg.Jobs.LockTTL))
	}
	a.Scheduler = jobs.NewScheduler(schedulerOpts...)
	a.Scheduler.Register(jobs.ScanReleases(a.Succession, cfg.Jobs.ScanReleasesInterval, a.logger))
	a.Scheduler.Register(jobs.TreeCountHealth(a.Memberships, cfg.Jobs.TreeCountHealthInterval, a.logger))
	a.Scheduler.Register(jobs.EmptyLegacy(a.Legacy, cfg.Jobs.EmptyLegacyDaysOld, cfg.Jobs.EmptyLegacyInterval, a.logger))

	if a.db != nil && a.producer != nil {
		a.relay = outbox.NewRelay(outbox.NewPostgresStore(a.db), st.runner, a.producer, cfg.Kafka.AuditTopicPrefix,
			outbox.WithLogger(a.logger),
			outbox.WithMetrics(platformMetrics),
			outbox.WithBatchSize(cfg.Kafka.RelayBatchSize),
		)
	}

	h := handler.New(a.Memberships, a.Succession, a.Legacy, a.Scheduler, cfg.Server.AdminToken, a.logger)
	if a.db != nil {
		h.AddHealthCheck("postgres", a.db.PingContext)
	}
	if a.redis != nil {
		h.AddHealthCheck("redis", a.redis.Health)
	}
	if a.producer != nil {
		h.AddHealthCheck("kafka", a.producer.Health)
	}
	a.router = handler.NewRouter(h, a.logger, platformMetrics)
	return nil
}

func (a *App) archiveGenerator() ports.ArchiveGenerator {
	if a.cfg.Archive.BaseURL == "" {
		a.logger.Warn("no archive service configured, using local archive handles")
		return archive.NewLocal(a.cfg.Server.PublicBaseURL)
	}
	return archive.New(a.cfg.Archive.BaseURL, a.cfg.Archive.Timeout,
		archive.WithLogger(a.logger),
		archive.WithBreaker(circuit.New("archive",
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(30*time.Second),
		)),
	)
}

func (a *App) notifier() ports.Notifier {
	if a.producer == nil {
		return notifier.NewLog(a.logger)
	}
	return notifier.NewKafka(a.producer, a.cfg.Kafka.NotificationsTopic, a.cfg.Server.PublicBaseURL)
}

// Router is the HTTP handler for the ops surface.
func (a *App) Router() http.Handler {
	return a.router
}

// Serve runs the HTTP server, the job scheduler (when enabled) and the outbox
// relay (when Postgres and Kafka are both configured) until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv := httpserver.New(a.cfg.Server.Addr, a.router)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "starting heirloom", "addr", a.cfg.Server.Addr, "database", a.cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.cfg.Jobs.Enabled {
		g.Go(func() error {
			return a.Scheduler.Start(ctx)
		})
	}
	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Run(ctx, a.cfg.Kafka.RelayInterval); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases every external connection. Safe on a partially built App.
func (a *App) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
