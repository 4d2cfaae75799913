package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsecal/scheduling/internal/db"
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

	gofakeit.Seed(time.Now().UnixNano())

	orgIDs, err := seedOrganizations(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed organizations: %v", err)
	}
	if err := seedStaff(context.Background(), pool, orgIDs); err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedOrganizations(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d organizations", count)

	orgTypes := []string{"clinic", "hospital", "solo_doctor"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		orgType := orgTypes[gofakeit.Number(0, len(orgTypes)-1)]
		name := gofakeit.Company() + " " + map[string]string{
			"clinic":      "Clinic",
			"hospital":    "Hospital",
			"solo_doctor": "Practice",
		}[orgType]

		_, err := tx.Exec(ctx, `
			INSERT INTO organizations (id, org_type, name, city, country, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, id, orgType, name, gofakeit.City(), gofakeit.Country())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("organizations seeded")
	return ids, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, orgIDs []uuid.UUID) error {
	log.Printf("seeding staff for %d organizations", len(orgIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, orgID := range orgIDs {
		// A handful of doctors and receptionists per organization.
		for i := 0; i < gofakeit.Number(2, 6); i++ {
			if err := insertUser(ctx, tx, "doctor", &orgID); err != nil {
				return err
			}
		}
		for i := 0; i < gofakeit.Number(1, 3); i++ {
			if err := insertUser(ctx, tx, "receptionist", &orgID); err != nil {
				return err
			}
		}
	}

	// A few solo doctors with no organization.
	for i := 0; i < 10; i++ {
		if err := insertUser(ctx, tx, "doctor", nil); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("staff seeded")
	return nil
}

func insertUser(ctx context.Context, tx pgx.Tx, role string, orgID *uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, name, email, role, organization_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, true, now())
	`, uuid.New(), gofakeit.Name(), gofakeit.Email(), role, orgID)
	return err
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, organization_id, is_active, created_at)
				VALUES ($1, $2, $3, 'patient', NULL, true, now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
