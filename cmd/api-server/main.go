package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/audit"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/slots"
)

var version = "dev"

// storage is the pair of stores every service is built from.
type storage struct {
	avail  availability.Repository
	ledger appointment.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	calendar.SetLocation(cfg.Location())
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("timezone", cfg.Timezone).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routerCfg := api.RouterConfig{
		Clock:     calendar.SystemClock{},
		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    logger,
		Env:       cfg.Env,
		Version:   version,
	}

	// Storage
	var (
		store  storage
		pgPool *pgxpool.Pool
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		if err := db.MigrateUp(pgPool, logger); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}

		store = storage{avail: availability.NewPgStore(pgPool), ledger: appointment.NewPgRepository(pgPool)}
		routerCfg.Postgres = pgPool
	case config.StorageMemory:
		avail := availability.NewMemoryStore()
		ledger := appointment.NewMemoryRepository()
		seedMemory(rootCtx, logger, avail, ledger)
		store = storage{avail: avail, ledger: ledger}
	}

	// Slot lock
	var locker redisclient.Locker = redisclient.NoopLocker{}
	if cfg.LockBackend == "redis" {
		rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		routerCfg.Redis = redisclient.Pinger{Client: rdb}
	}

	// Audit
	sinks := audit.MultiSink{}
	for _, name := range cfg.AuditSinks {
		switch name {
		case "log":
			sinks = append(sinks, audit.NewLogSink(logger))
		case "postgres":
			pgSink := audit.NewPgSink(pgPool)
			sinks = append(sinks, pgSink)
			routerCfg.AuditLog = pgSink
		case "kafka":
			k := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
			defer k.Close()
			sinks = append(sinks, k)
		}
	}
	if routerCfg.AuditLog == nil && cfg.StorageDriver == config.StorageMemory {
		mem := audit.NewMemorySink()
		sinks = append(sinks, mem)
		routerCfg.AuditLog = mem
	}
	rec := audit.NewRecorder(sinks, logger)

	routerCfg.Appointments = appointment.NewService(store.ledger, store.avail, locker, routerCfg.Clock, rec, logger)
	routerCfg.Availability = availability.NewManager(store.avail, rec)
	routerCfg.Slots = slots.NewEngine(store.avail, store.ledger, routerCfg.Clock)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// seedMemory fills the in-process stores with a small practice so the memory
// driver is usable without running cmd/seed.
func seedMemory(ctx context.Context, logger zerolog.Logger, avail *availability.MemoryStore, ledger *appointment.MemoryRepository) {
	for range 3 {
		specialty := gofakeit.RandomString([]string{"General Practice", "Cardiology", "Dermatology", "Pediatrics"})
		p := avail.AddPractitioner(availability.Practitioner{Name: "Dr. " + gofakeit.LastName(), Specialty: &specialty, Active: true})
		for day := 1; day <= 5; day++ {
			for _, span := range [][2]calendar.TimeOfDay{
				{calendar.NewTimeOfDay(9, 0), calendar.NewTimeOfDay(12, 0)},
				{calendar.NewTimeOfDay(14, 0), calendar.NewTimeOfDay(17, 0)},
			} {
				if _, err := avail.CreateWindow(ctx, availability.WeeklyWindow{
					PractitionerID: p.ID,
					DayOfWeek:      day,
					Start:          span[0],
					End:            span[1],
				}); err != nil {
					logger.Fatal().Err(err).Msg("seed weekly window")
				}
			}
		}
		logger.Info().Str("practitioner_id", p.ID.String()).Str("name", p.Name).Msg("seeded practitioner")
	}

	for range 5 {
		email := gofakeit.Email()
		pt := ledger.AddPatient(appointment.Patient{Name: gofakeit.Name(), Email: &email})
		logger.Info().Str("patient_id", pt.ID.String()).Str("name", pt.Name).Msg("seeded patient")
	}
}
