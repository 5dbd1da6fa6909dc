package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/principal"
	"github.com/hackgods/clinic-scheduling/internal/slots"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	PatientLimit      int
	PractitionerLimit int
	HotSlots          int
	PostgresDSN       string
	JWTSecret         string
}

// target is one bookable slot the workers compete for.
type target struct {
	PractitionerID uuid.UUID
	At             time.Time
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []uuid.UUID
	Targets       []target

	mu      sync.Mutex
	winners map[target][]uuid.UUID
}

func (dp *DataPool) RecordWin(t target, appointmentID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.winners[t] = append(dp.winners[t], appointmentID)
}

// DoubleBookings counts slots that more than one request managed to book.
func (dp *DataPool) DoubleBookings() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	n := 0
	for _, ids := range dp.winners {
		if len(ids) > 1 {
			n++
		}
	}
	return n
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pick := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pick(50), pick(95)
}

type Metrics struct {
	Booking   OperationMetrics
	ReadSlots OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("hot_slots", cfg.HotSlots).
		Float64("booking_ratio", cfg.BookingRatio).
		Msg("simulator starting")

	// The simulator acts as an administrator so it may book for any patient.
	token, err := principal.Sign(principal.Admin(), []byte(cfg.JWTSecret), cfg.Duration+time.Minute)
	if err != nil {
		logger.Fatal().Err(err).Msg("sign token")
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	sim.pool, err = sim.loadDataPool(ctx, pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(sim.pool.Patients)).
		Int("practitioners", len(sim.pool.Practitioners)).
		Int("targets", len(sim.pool.Targets)).
		Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()

	if sim.pool.DoubleBookings() > 0 {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 20),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.7),
		PatientLimit:      getInt("SIM_PATIENT_LIMIT", 2000),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 10),
		HotSlots:          getInt("SIM_HOT_SLOTS", 50),
		PostgresDSN:       base.PostgresDSN,
		JWTSecret:         base.JWTSecret,
	}
	cfg.BookingRatio = min(max(cfg.BookingRatio, 0), 1)
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotSlots <= 0 {
		return fmt.Errorf("SIM_HOT_SLOTS must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{winners: make(map[target][]uuid.UUID)}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, s.config.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dp.Patients, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID]); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM practitioners WHERE active LIMIT $1`, s.config.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	if dp.Practitioners, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID]); err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dp.Practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners loaded")
	}

	// Next week is fully in the future, so every slot it lists is bookable.
	nextWeek := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	for _, pid := range dp.Practitioners {
		var week []slots.DaySlots
		url := fmt.Sprintf("%s/practitioners/%s/slots/week?date=%s", s.config.APIBaseURL, pid, nextWeek)
		if err := s.getJSON(ctx, url, &week); err != nil {
			return nil, fmt.Errorf("load slots of %s: %w", pid, err)
		}
		for _, day := range week {
			for _, at := range day.Slots {
				dp.Targets = append(dp.Targets, target{PractitionerID: pid, At: at})
			}
		}
	}
	if len(dp.Targets) == 0 {
		return nil, fmt.Errorf("no open slots next week")
	}

	// A small hot set keeps many workers racing for the same slots.
	rand.Shuffle(len(dp.Targets), func(i, j int) { dp.Targets[i], dp.Targets[j] = dp.Targets[j], dp.Targets[i] })
	dp.Targets = dp.Targets[:min(len(dp.Targets), s.config.HotSlots)]

	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := range s.config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, i)
		}()
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else {
				s.doReadSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body, _ := json.Marshal(map[string]any{
		"practitioner_id": t.PractitionerID,
		"patient_id":      patientID,
		"date_time":       t.At,
		"reason":          "load test",
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var appt struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&appt) == nil {
				s.pool.RecordWin(t, appt.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	} else if ctx.Err() != nil {
		// Cut off by the end of the run.
		return
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doReadSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	url := fmt.Sprintf("%s/practitioners/%s/slots?date=%s", s.config.APIBaseURL, t.PractitionerID, t.At.Format("2006-01-02"))

	start := time.Now()
	var out struct {
		Slots []time.Time `json:"slots"`
	}
	err := s.getJSON(ctx, url, &out)
	if err != nil && ctx.Err() != nil {
		return
	}
	s.metrics.ReadSlots.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contended slots: %d\n", len(s.pool.Targets))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Read slots", &s.metrics.ReadSlots)

	if n := s.pool.DoubleBookings(); n > 0 {
		fmt.Printf("DOUBLE BOOKINGS: %d slots were booked more than once\n", n)
	} else {
		fmt.Println("No slot was booked more than once.")
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Slot taken: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
