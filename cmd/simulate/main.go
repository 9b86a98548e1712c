package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/therapy-scheduling/internal/api"
	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/calendar"
	"github.com/hackgods/therapy-scheduling/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Token        string
	TherapistID  string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	SeriesRatio  float64
	ConfirmRatio float64
	ReadRatio    float64
	WeekOffset   int
}

type DataPool struct {
	// Candidates are every bookable hour of the simulated week.
	Candidates   []time.Time
	mu           sync.RWMutex
	appointments []uuid.UUID // Thread-safe list of created appointment IDs
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking  OperationMetrics
	Series   OperationMetrics
	Confirm  OperationMetrics
	WeekView OperationMetrics
	DaySlots OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *zap.Logger
}

func main() {
	log := logger.New(getEnv("APP_ENV", "dev"))
	defer func() { _ = log.Sync() }()
	log.Info("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulation config",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.String("therapist", cfg.TherapistID),
		zap.Float64("booking_ratio", cfg.BookingRatio),
		zap.Float64("series_ratio", cfg.SeriesRatio),
		zap.Float64("confirm_ratio", cfg.ConfirmRatio),
		zap.Float64("read_ratio", cfg.ReadRatio),
	)

	pool := buildDataPool(cfg, time.Now())
	log.Info("simulated week ready",
		zap.String("week_start", calendar.FormatDateLocal(pool.Candidates[0])),
		zap.Int("candidate_slots", len(pool.Candidates)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   pool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Token:        os.Getenv("SIM_TOKEN"),
		TherapistID:  getEnv("SIM_THERAPIST", appointment.FallbackTherapist),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		SeriesRatio:  getFloat("SIM_SERIES_RATIO", 0.1),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		WeekOffset:   getInt("SIM_WEEK_OFFSET", 1),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.SeriesRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.SeriesRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.WeekOffset < 0 {
		return fmt.Errorf("SIM_WEEK_OFFSET must be >= 0")
	}
	return nil
}

// buildDataPool lists every hourly start of the target week. All workers book
// into this one week so they contend for the same slots.
func buildDataPool(cfg SimConfig, now time.Time) *DataPool {
	weekStart := calendar.AddDays(calendar.StartOfWeek(now), 7*cfg.WeekOffset)

	pool := &DataPool{}
	for _, day := range calendar.WorkWeek(weekStart) {
		for hour := appointment.OpeningHour; hour < appointment.ClosingHour; hour++ {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
			if start.After(now) {
				pool.Candidates = append(pool.Candidates, start)
			}
		}
	}
	if len(pool.Candidates) == 0 {
		// the target week is already over, fall back to its Monday opening
		pool.Candidates = append(pool.Candidates, time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), appointment.OpeningHour, 0, 0, 0, weekStart.Location()))
	}
	return pool
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	faker := gofakeit.New(rng.Int63())

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng, faker, nil, &s.metrics.Booking)
			case r < s.config.BookingRatio+s.config.SeriesRatio:
				rec := &api.RecurrenceRequest{Stride: string(appointment.StrideWeekly), Sessions: 2 + rng.Intn(3)}
				s.doBooking(ctx, rng, faker, rec, &s.metrics.Series)
			case r < s.config.BookingRatio+s.config.SeriesRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doWeekView(ctx)
				} else {
					s.doDaySlots(ctx, rng)
				}
			}
		}
	}
}

type bookingBody struct {
	PatientName string                 `json:"patient_name"`
	Date        string                 `json:"date"`
	Cost        string                 `json:"cost"`
	TherapistID string                 `json:"therapist_id"`
	Recurrence  *api.RecurrenceRequest `json:"recurrence,omitempty"`
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker, rec *api.RecurrenceRequest, om *OperationMetrics) {
	start := s.pool.Candidates[rng.Intn(len(s.pool.Candidates))]

	body, _ := json.Marshal(bookingBody{
		PatientName: faker.Name(),
		Date:        calendar.FormatLocal(start),
		Cost:        strconv.Itoa(faker.Number(8, 16) * 5),
		TherapistID: s.config.TherapistID,
		Recurrence:  rec,
	})

	began := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", body)
	latency := time.Since(began)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			s.collectIDs(resp)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			// 422 is the snapshot check rejecting a taken slot
			conflict = true
		}
	}

	om.Record(latency, success, conflict)
}

// collectIDs remembers every appointment id in a booking or series response.
func (s *Simulator) collectIDs(resp *http.Response) {
	var out struct {
		Appointment *api.AppointmentResponse  `json:"appointment"`
		Booked      []api.AppointmentResponse `json:"booked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return
	}
	if out.Appointment != nil {
		s.pool.AddAppointment(out.Appointment.ID)
	}
	for _, a := range out.Booked {
		s.pool.AddAppointment(a.ID)
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", apptID), nil)
	latency := time.Since(began)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Confirm.Record(latency, success, conflict)
}

func (s *Simulator) doWeekView(ctx context.Context) {
	date := calendar.FormatDateLocal(s.pool.Candidates[0])

	began := time.Now()
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/calendar/week?date=%s&therapist=%s", date, s.config.TherapistID), nil)
	latency := time.Since(began)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.WeekView.Record(latency, success, false)
}

func (s *Simulator) doDaySlots(ctx context.Context, rng *rand.Rand) {
	date := calendar.FormatDateLocal(s.pool.Candidates[rng.Intn(len(s.pool.Candidates))])

	began := time.Now()
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/slots/day?date=%s&therapist=%s", date, s.config.TherapistID), nil)
	latency := time.Since(began)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.DaySlots.Record(latency, success, false)
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Therapist: %s\n", s.config.TherapistID)
	fmt.Printf("Appointments created: %d\n", len(s.pool.appointments))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Series", &s.metrics.Series)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Week view", &s.metrics.WeekView)
	printOperationReport("Day slots", &s.metrics.DaySlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
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
