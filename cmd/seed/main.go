package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// Typical week shapes, in minutes since midnight.
var schedules = [][][2]int{
	{{9 * 60, 12 * 60}, {14 * 60, 18 * 60}},
	{{8 * 60, 13 * 60}},
	{{13 * 60, 19*60 + 30}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PgMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		logger.Fatal().Err(err).Msg("seed faker")
	}

	if err := seedPractitioners(context.Background(), logger, pool, 50); err != nil {
		logger.Fatal().Err(err).Msg("seed practitioners")
	}
	if err := seedPatients(context.Background(), logger, pool, 5000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

// seedPractitioners inserts practitioners together with their weekday
// windows. Some practitioners get a Saturday morning too.
func seedPractitioners(ctx context.Context, logger zerolog.Logger, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding practitioners")

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for range count {
			id := uuid.New()
			batch.Queue(`
				INSERT INTO practitioners (id, name, specialty, active, created_at, updated_at)
				VALUES ($1, $2, $3, true, now(), now())
			`, id, "Dr. "+gofakeit.LastName(), gofakeit.RandomString(specialties))

			schedule := schedules[gofakeit.Number(0, len(schedules)-1)]
			days := 5
			if gofakeit.Bool() {
				days = 6
			}
			for day := 1; day <= days; day++ {
				for _, span := range schedule {
					if day == 6 && span[0] >= 12*60 {
						continue
					}
					batch.Queue(`
						INSERT INTO weekly_windows (id, practitioner_id, day_of_week, start_minute, end_minute, created_at)
						VALUES ($1, $2, $3, $4, $5, now())
					`, uuid.New(), id, day, span[0], span[1])
				}
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		logger.Info().Msg("practitioners seeded")
		return nil
	})
}

func seedPatients(ctx context.Context, logger zerolog.Logger, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for range end - offset {
				batch.Queue(`
					INSERT INTO patients (id, name, email, created_at, updated_at)
					VALUES ($1, $2, $3, now(), now())
				`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			}
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}
