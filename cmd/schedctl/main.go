package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/principal"
	"github.com/hackgods/clinic-scheduling/internal/slots"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "schedctl",
		Short:         "Clinic scheduling administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connect loads the configuration and opens the Postgres pool.
func connect(ctx context.Context) (config.Config, *pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, zerolog.Nop(), err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	calendar.SetLocation(cfg.Location())

	if cfg.StorageDriver != config.StoragePostgres {
		return cfg, nil, logger, fmt.Errorf("schedctl needs STORAGE_DRIVER=postgres, got %q", cfg.StorageDriver)
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	if err != nil {
		return cfg, nil, logger, err
	}
	return cfg, pool, logger, nil
}

func withMigrator(cmd *cobra.Command, fn func(*db.Migrator) error) error {
	_, pool, logger, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	mg, err := db.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(mg)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(mg *db.Migrator) error { return mg.Up() })
		},
	})

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd, func(mg *db.Migrator) error { return mg.Down(steps) })
		},
	}
	downCmd.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.AddCommand(downCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(mg *db.Migrator) error {
				v, dirty, err := mg.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	})

	return cmd
}

func slotsCmd() *cobra.Command {
	var (
		practitioner string
		date         string
		week         bool
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the bookable slots of a practitioner",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := uuid.Parse(practitioner)
			if err != nil {
				return fmt.Errorf("invalid --practitioner: %w", err)
			}

			_, pool, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			day := calendar.DateOf(time.Now())
			if date != "" {
				if day, err = calendar.ParseDate(date); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			engine := slots.NewEngine(availability.NewPgStore(pool), appointment.NewPgRepository(pool), calendar.SystemClock{})

			days := []slots.DaySlots{{Date: day}}
			if week {
				if days, err = engine.ForWeek(cmd.Context(), pid, day); err != nil {
					return err
				}
			} else if days[0].Slots, err = engine.ForDate(cmd.Context(), pid, day); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range days {
				fmt.Fprintf(out, "%s (%d slots)\n", d.Date, len(d.Slots))
				for _, s := range d.Slots {
					fmt.Fprintf(out, "  %s\n", s.Format("15:04"))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&practitioner, "practitioner", "", "practitioner id")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD, defaults to today")
	cmd.Flags().BoolVar(&week, "week", false, "print the whole Monday-to-Sunday week")
	_ = cmd.MarkFlagRequired("practitioner")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		role string
		id   string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var subject uuid.UUID
			if id != "" {
				if subject, err = uuid.Parse(id); err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
			}
			p, err := principal.New(role, subject)
			if err != nil {
				return err
			}

			tok, err := principal.Sign(p, []byte(cfg.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "admin", "admin, practitioner or patient")
	cmd.Flags().StringVar(&id, "id", "", "practitioner or patient id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
