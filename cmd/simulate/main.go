// simulate drives concurrent reservation traffic against a running
// api-server and reports how contention resolved: every appointment
// should end up with at most one successful reservation no matter how
// many workers fight over it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/bookwell/booking/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	ConfirmRatio float64
	ClientCount  int
	PostgresDSN  string
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:      getIntEnv("SIM_WORKERS", 16),
		ConfirmRatio: getFloatEnv("SIM_CONFIRM_RATIO", 0.7),
		ClientCount:  getIntEnv("SIM_CLIENTS", 200),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required to load the appointment pool")
	}
	return cfg
}

type DataPool struct {
	Clients      []string
	Appointments []string

	mu           sync.RWMutex
	reservations []string
}

func (dp *DataPool) AddReservation(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.reservations = append(dp.reservations, id)
}

func (dp *DataPool) RandomReservation(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.reservations) == 0 {
		return "", false
	}
	return dp.reservations[rng.Intn(len(dp.reservations))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(pct int) int {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return sorted[idx(50)], sorted[idx(95)]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()

	log.Printf("simulate: url=%s duration=%s workers=%d confirm_ratio=%.2f",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.ConfirmRatio)

	pool, err := loadDataPool(cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d appointments, generated %d clients", len(pool.Appointments), len(pool.Clients))

	createMetrics := &OperationMetrics{}
	confirmMetrics := &OperationMetrics{}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runWorker(ctx, cfg, pool, createMetrics, confirmMetrics, rand.New(rand.NewSource(seed)))
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()

	report("create", createMetrics)
	report("confirm", confirmMetrics)
}

func loadDataPool(cfg SimConfig) (*DataPool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pgPool.Close()

	rows, err := pgPool.Query(ctx, `
		SELECT id FROM appointments
		WHERE reserved_by IS NULL
		ORDER BY start_time
		LIMIT 2000
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pool := &DataPool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pool.Appointments = append(pool.Appointments, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := 0; i < cfg.ClientCount; i++ {
		pool.Clients = append(pool.Clients, gofakeit.UUID())
	}

	return pool, nil
}

func runWorker(ctx context.Context, cfg SimConfig, pool *DataPool, create, confirm *OperationMetrics, rng *rand.Rand) {
	client := &http.Client{Timeout: 5 * time.Second}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rng.Float64() < cfg.ConfirmRatio {
			if resID, ok := pool.RandomReservation(rng); ok {
				doConfirm(ctx, client, cfg.APIBaseURL, pool, resID, rng, confirm)
				continue
			}
		}
		doCreate(ctx, client, cfg.APIBaseURL, pool, rng, create)
	}
}

func doCreate(ctx context.Context, client *http.Client, baseURL string, pool *DataPool, rng *rand.Rand, m *OperationMetrics) {
	apptID := pool.Appointments[rng.Intn(len(pool.Appointments))]
	clientID := pool.Clients[rng.Intn(len(pool.Clients))]

	body, _ := json.Marshal(map[string]string{
		"client_id":      clientID,
		"appointment_id": apptID,
	})

	start := time.Now()
	status, respBody := post(ctx, client, baseURL+"/reservations", body)
	m.Record(time.Since(start), status)

	if status == http.StatusCreated {
		var res struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &res); err == nil && res.ID != "" {
			pool.AddReservation(res.ID)
		}
	}
}

func doConfirm(ctx context.Context, client *http.Client, baseURL string, pool *DataPool, resID string, rng *rand.Rand, m *OperationMetrics) {
	clientID := pool.Clients[rng.Intn(len(pool.Clients))]

	body, _ := json.Marshal(map[string]string{"client_id": clientID})

	start := time.Now()
	status, _ := post(ctx, client, baseURL+"/reservations/"+resID+"/confirm", body)
	m.Record(time.Since(start), status)
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, respBody
}

func report(name string, m *OperationMetrics) {
	p50, p95 := m.Percentiles()
	fmt.Printf("%-8s total=%d success=%d conflict=%d error=%d p50=%s p95=%s\n",
		name,
		atomic.LoadInt64(&m.Total),
		atomic.LoadInt64(&m.Success),
		atomic.LoadInt64(&m.Conflict),
		atomic.LoadInt64(&m.Error),
		p50, p95,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
