package snapshot

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"unoc/core-go/internal/topology"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	dsn := requireTestDatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	store, err := NewPostgresStore(ctx, pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	name := "it-" + time.Now().UTC().Format("20060102150405")
	defer func() {
		_, _ = pool.DB().Exec(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	}()

	if err := store.Save(ctx, name, sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Topology.Devices) != 1 || got.Topology.Devices[0].Status != topology.DeviceOnline {
		t.Fatalf("state = %+v", got.Topology)
	}

	// Overwrite under the same name.
	changed := sampleState()
	changed.Topology.Devices[0].Status = topology.DeviceMaintenance
	if err := store.Save(ctx, name, changed); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, err = store.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	if got.Topology.Devices[0].Status != topology.DeviceMaintenance {
		t.Fatalf("overwrite lost: %+v", got.Topology.Devices[0])
	}

	if _, err := store.Load(ctx, "never-saved-snapshot"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
