package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/hackgods/telehealth-booking/internal/db"
)

// simulate hammers the booking endpoint with concurrent patients competing
// for a small set of therapist slots, then verifies the conflict invariant
// directly against the database: no two pending/confirmed appointments may
// share a therapist and start instant.

type counters struct {
	created   int64
	conflicts int64
	contended int64
	errors    int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	baseURL := envOr("API_BASE_URL", "http://localhost:8080")
	workers := envIntOr("SIM_WORKERS", 32)
	requests := envIntOr("SIM_REQUESTS", 500)
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	patients, err := loadIDs(ctx, pool, `SELECT id FROM patients LIMIT 200`)
	if err != nil || len(patients) == 0 {
		log.Fatalf("load patients (run cmd/seed first): %v", err)
	}
	therapists, err := loadIDs(ctx, pool, `SELECT id FROM therapists LIMIT 5`)
	if err != nil || len(therapists) == 0 {
		log.Fatalf("load therapists (run cmd/seed first): %v", err)
	}

	// A deliberately tiny slot space so most requests collide.
	base := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	slots := make([]time.Time, 8)
	for i := range slots {
		slots[i] = base.Add(time.Duration(i) * time.Hour)
	}

	log.Printf("simulating %d bookings across %d workers, %d therapists, %d slots",
		requests, workers, len(therapists), len(slots))

	var c counters
	jobs := make(chan struct{}, requests)
	for i := 0; i < requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				book(client, baseURL, &c,
					patients[rand.Intn(len(patients))],
					therapists[rand.Intn(len(therapists))],
					slots[rand.Intn(len(slots))],
				)
			}
		}()
	}
	wg.Wait()

	log.Printf("done in %s: created=%d conflicts=%d contended=%d errors=%d",
		time.Since(start),
		atomic.LoadInt64(&c.created),
		atomic.LoadInt64(&c.conflicts),
		atomic.LoadInt64(&c.contended),
		atomic.LoadInt64(&c.errors),
	)

	// Invariant check straight against the store.
	var violations int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT therapist_id, scheduled_at
			FROM appointments
			WHERE status IN ('pending', 'confirmed')
			GROUP BY therapist_id, scheduled_at
			HAVING COUNT(*) > 1
		) dup
	`).Scan(&violations)
	if err != nil {
		log.Fatalf("invariant query: %v", err)
	}
	if violations > 0 {
		log.Fatalf("INVARIANT VIOLATED: %d therapist/start pairs with multiple live appointments", violations)
	}
	log.Println("conflict invariant holds: no duplicate live slots")
}

func book(client *http.Client, baseURL string, c *counters, patientID, therapistID uuid.UUID, startsAt time.Time) {
	body, _ := json.Marshal(map[string]any{
		"therapist_id":  therapistID.String(),
		"scheduled_at":  startsAt.Format(time.RFC3339),
		"duration_mins": 60,
		"timezone":      "UTC",
		"type":          "scheduled",
		"amount_cents":  8000,
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", patientID.String())
	req.Header.Set("X-Actor-Role", "patient")

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&c.created, 1)
	case http.StatusConflict:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "slot_being_booked" {
			atomic.AddInt64(&c.contended, 1)
		} else {
			atomic.AddInt64(&c.conflicts, 1)
		}
	default:
		atomic.AddInt64(&c.errors, 1)
	}
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query)
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

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
