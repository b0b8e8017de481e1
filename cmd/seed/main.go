package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwell/booking/internal/booking"
	"github.com/bookwell/booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := applyMigrations(context.Background(), pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	providerIDs, err := seedProviders(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}

	if err := seedSlots(context.Background(), pool, providerIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	content, err := os.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(string(content)) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, part := range strings.Split(sql, ";") {
		stmt := strings.TrimSpace(part)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]string, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Physiotherapy",
		"Dentistry",
		"Optometry",
		"Nutrition",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewString()
		name := gofakeit.Name() + " - " + specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name)
			VALUES ($1, $2)
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("providers seeded")
	return ids, nil
}

// seedSlots publishes a working day of 15-minute slots per provider,
// starting two days out so every slot clears the default lead time.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, providerIDs []string) error {
	store := booking.NewPgStore(pool)

	dayStart := time.Now().Truncate(time.Hour).Add(48 * time.Hour)

	for i, providerID := range providerIDs {
		start := dayStart.Add(time.Duration(gofakeit.Number(8, 10)) * time.Hour)
		end := start.Add(time.Duration(gofakeit.Number(4, 8)) * time.Hour)

		slots, err := booking.GenerateSlots(providerID, start, end, 15*time.Minute)
		if err != nil {
			return err
		}
		if err := store.AddAppointments(ctx, slots); err != nil {
			return err
		}

		cache := make([]booking.Slot, len(slots))
		for j, a := range slots {
			cache[j] = booking.Slot{Start: a.Start, End: a.End}
		}
		if err := store.AppendProviderSlots(ctx, providerID, cache); err != nil {
			return err
		}

		if (i+1)%10 == 0 {
			log.Printf("slots seeded for %d/%d providers", i+1, len(providerIDs))
		}
	}

	log.Println("slots seeded")
	return nil
}
