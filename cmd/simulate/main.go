// Command simulate hammers the booking endpoint with deliberately
// colliding slot requests and then verifies, straight from Postgres,
// that no doctor ended up double-booked. It exists to exercise the
// conflict-check-under-lock path with real concurrency.
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
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsecal/scheduling/internal/config"
	"github.com/pulsecal/scheduling/internal/db"
)

type simConfig struct {
	APIBaseURL  string
	Workers     int
	Requests    int
	Doctors     int
	Slots       int
	PostgresDSN string
	SlotMinutes int
}

type counters struct {
	success  int64
	conflict int64
	errors   int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	sim := simConfig{
		APIBaseURL:  getenv("SIM_API_URL", "http://127.0.0.1:8080"),
		Workers:     atoiEnv("SIM_WORKERS", 32),
		Requests:    atoiEnv("SIM_REQUESTS", 2000),
		Doctors:     atoiEnv("SIM_DOCTORS", 5),
		Slots:       atoiEnv("SIM_SLOTS", 20),
		PostgresDSN: cfg.PostgresDSN,
		SlotMinutes: int(cfg.SlotDuration.Minutes()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, sim.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	doctors, err := pickUsers(pool, "doctor", sim.Doctors)
	if err != nil {
		log.Fatalf("pick doctors: %v", err)
	}
	patients, err := pickUsers(pool, "patient", sim.Workers*4)
	if err != nil {
		log.Fatalf("pick patients: %v", err)
	}
	if len(doctors) == 0 || len(patients) == 0 {
		log.Fatal("run cmd/seed first: no doctors or patients found")
	}

	// A deliberately small slot grid so most requests collide.
	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	slots := make([]time.Time, sim.Slots)
	for i := range slots {
		slots[i] = base.Add(time.Duration(i*sim.SlotMinutes) * time.Minute)
	}

	log.Printf("simulating %d booking requests across %d doctors x %d slots with %d workers",
		sim.Requests, len(doctors), len(slots), sim.Workers)

	var c counters
	var wg sync.WaitGroup
	jobs := make(chan int)

	client := &http.Client{Timeout: 10 * time.Second}

	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ rand.Int63()))
			for range jobs {
				doctor := doctors[rng.Intn(len(doctors))]
				patient := patients[rng.Intn(len(patients))]
				slot := slots[rng.Intn(len(slots))]
				book(client, sim.APIBaseURL, doctor, patient, slot, &c)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < sim.Requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	log.Printf("done in %s: success=%d conflict=%d errors=%d",
		time.Since(start),
		atomic.LoadInt64(&c.success),
		atomic.LoadInt64(&c.conflict),
		atomic.LoadInt64(&c.errors))

	verify(pool, sim.SlotMinutes)
}

func book(client *http.Client, baseURL string, doctor, patient uuid.UUID, slot time.Time, c *counters) {
	body, _ := json.Marshal(map[string]any{
		"patient_id":   patient.String(),
		"doctor_id":    doctor.String(),
		"scheduled_at": slot.Format(time.RFC3339),
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", patient.String())
	req.Header.Set("X-User-Role", "patient")

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&c.success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&c.conflict, 1)
	default:
		atomic.AddInt64(&c.errors, 1)
	}
}

// verify fails loudly if any doctor holds two non-terminal appointments
// less than one slot apart.
func verify(pool *pgxpool.Pool, slotMinutes int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var violations int
	err := pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.id < b.id
		 AND abs(extract(epoch FROM a.scheduled_at - b.scheduled_at)) < %d * 60
		WHERE a.status NOT IN ('cancelled', 'declined')
		  AND b.status NOT IN ('cancelled', 'declined')
	`, slotMinutes)).Scan(&violations)
	if err != nil {
		log.Fatalf("verify query: %v", err)
	}

	if violations > 0 {
		log.Fatalf("FAIL: %d overlapping appointment pairs found", violations)
	}
	log.Println("OK: no overlapping appointments for any doctor")
}

func pickUsers(pool *pgxpool.Pool, role string, limit int) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
		SELECT id FROM users WHERE role = $1 AND is_active LIMIT $2
	`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
