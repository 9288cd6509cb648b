//go:build integration

package entstore

import (
	"context"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/store/storetest"
)

func openPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("qreplay"),
		tcpostgres.WithUsername("qreplay"),
		tcpostgres.WithPassword("qreplay"),
		tcpostgres.WithSQLDriver("pgx"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestPostgresConformance(t *testing.T) {
	storetest.Run(t, "pg-", openPostgres(t))
}

// The same appends must list identically on SQLite and Postgres.
func TestParity_SQLite_vs_Postgres_RecordOrdering(t *testing.T) {
	ctx := context.Background()
	sqlite := openMemory(t, "parity")
	pg := openPostgres(t)

	batches := [][]replay.Record{
		{storetest.Record("c1", 10), storetest.Record("c2", 20)},
		{storetest.Record("c1", 10)},
		{storetest.Record("c3", 6), storetest.Record("c1", 10)},
	}
	for _, b := range batches {
		if err := sqlite.AppendRecords(ctx, "parity", b); err != nil {
			t.Fatal(err)
		}
		if err := pg.AppendRecords(ctx, "parity", b); err != nil {
			t.Fatal(err)
		}
	}

	a, err := sqlite.ListRecords(ctx, "parity")
	if err != nil {
		t.Fatal(err)
	}
	b, err := pg.ListRecords(ctx, "parity")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("length mismatch sqlite=%d postgres=%d", len(a), len(b))
	}
	for i := range a {
		if a[i].CircuitStr != b[i].CircuitStr || a[i].Shots != b[i].Shots {
			t.Fatalf("record mismatch at %d: sqlite=%+v postgres=%+v", i, a[i], b[i])
		}
	}
}
