package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
)

func TestNextPositionMonotonic(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	shopID := seedShop(t, ctx, st)

	const n = 20
	var wg sync.WaitGroup
	positions := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pos, err := st.NextPosition(ctx, shopID)
			if err != nil {
				t.Errorf("next position: %v", err)
				return
			}
			positions <- pos
		}()
	}
	wg.Wait()
	close(positions)

	seen := make(map[int]bool)
	for pos := range positions {
		if seen[pos] {
			t.Fatalf("duplicate position %d", pos)
		}
		seen[pos] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct positions, got %d", n, len(seen))
	}

	// Draining the queue must not rewind the counter.
	if _, err := st.DeleteTickets(ctx, shopID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next, err := st.NextPosition(ctx, shopID)
	if err != nil {
		t.Fatalf("next position: %v", err)
	}
	if next != n+1 {
		t.Fatalf("position after drain = %d, want %d", next, n+1)
	}
}

func TestTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	shopID := seedShop(t, ctx, st)
	now := time.Now().UTC().Truncate(time.Microsecond)

	ticket, err := st.InsertTicket(ctx, models.Ticket{
		ShopID:       shopID,
		Type:         models.TypeWalkIn,
		Status:       models.StatusWaiting,
		Position:     1,
		ServiceID:    "corte",
		CustomerName: "Ana",
		CreatedAt:    now,
		CheckInTime:  &now,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ticket.TicketID == 0 {
		t.Fatal("expected assigned ticket id")
	}

	loaded, err := st.GetTicket(ctx, shopID, ticket.TicketID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.CustomerName != "Ana" || loaded.Status != models.StatusWaiting || loaded.CheckInTime == nil {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.BarberID != nil || loaded.CancelReason != "" {
		t.Fatalf("nullable fields should stay empty: %+v", loaded)
	}

	barber := "b1"
	loaded.Status = models.StatusInProgress
	loaded.BarberID = &barber
	loaded.StartedAt = &now
	if _, err := st.UpdateTicket(ctx, loaded); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, err := st.ListActiveTickets(ctx, shopID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].BarberID == nil || *active[0].BarberID != "b1" {
		t.Fatalf("active = %+v", active)
	}
}

func TestAverageServiceDurationWindow(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	shopID := seedShop(t, ctx, st)

	if _, ok, err := st.AverageServiceDuration(ctx, shopID, "corte"); err != nil || ok {
		t.Fatalf("empty history: ok=%v err=%v", ok, err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * 10 * time.Minute)
		end := start.Add(20 * time.Minute)
		ticket, err := st.InsertTicket(ctx, models.Ticket{
			ShopID:       shopID,
			Type:         models.TypeWalkIn,
			Status:       models.StatusCompleted,
			ServiceID:    "corte",
			CustomerName: fmt.Sprintf("cliente %d", i),
			CreatedAt:    start,
			StartedAt:    &start,
			CompletedAt:  &end,
		})
		if err != nil {
			t.Fatalf("insert completed: %v", err)
		}
		_ = ticket
	}

	avg, ok, err := st.AverageServiceDuration(ctx, shopID, "corte")
	if err != nil || !ok {
		t.Fatalf("avg: ok=%v err=%v", ok, err)
	}
	if avg != 20*time.Minute {
		t.Fatalf("avg = %v, want 20m", avg)
	}
}

func seedShop(t *testing.T, ctx context.Context, st *Store) string {
	t.Helper()
	shopID := uuid.NewString()
	_, err := st.pool.Exec(ctx, `
		INSERT INTO shops (shop_id, slug, name, settings) VALUES ($1, $2, $3, '{}'::jsonb)
	`, shopID, "shop-"+shopID[:8], "Test Shop")
	if err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	_, err = st.pool.Exec(ctx, `
		INSERT INTO services (service_id, shop_id, name, duration_seconds, active)
		VALUES ('corte', $1, 'Corte', 1800, TRUE)
	`, shopID)
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return shopID
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool)
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
