package entstore

import (
	"context"
	"testing"

	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/store"
	"github.com/wilhg/qreplay/pkg/store/storetest"
)

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, "sqlite-", openMemory(t, "conformance"))
}

func TestSQLiteSeqContinuesAcrossAppends(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t, "seq")

	for i := 0; i < 3; i++ {
		if err := st.AppendRecords(ctx, "run1", []replay.Record{storetest.Record("c", 4)}); err != nil {
			t.Fatal(err)
		}
	}
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tx.Rollback() }()
	last, err := st.lastSeq(ctx, tx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if last != 3 {
		t.Fatalf("seq=%d want 3", last)
	}
}

func TestSQLiteListRecordsRejectsCorruptRows(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t, "corrupt")
	if err := st.AppendRecords(ctx, "bad", []replay.Record{storetest.Record("c", 4)}); err != nil {
		t.Fatal(err)
	}
	// Counts no longer sum to n_shots.
	if _, err := st.db.ExecContext(ctx, "UPDATE records SET counts = ? WHERE corpus = ?", `{"00":1}`, "bad"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.ListRecords(ctx, "bad"); !errmodel.HasCode(err, errmodel.CodeInvalidCorpus) {
		t.Fatalf("ListRecords err=%v want invalid_corpus", err)
	}
	if _, err := store.Document(ctx, st, "bad"); !errmodel.HasCode(err, errmodel.CodeInvalidCorpus) {
		t.Fatalf("Document err=%v want invalid_corpus", err)
	}
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	st := openMemory(t, "migrate")
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestParseDSN(t *testing.T) {
	cases := []struct {
		in      string
		drv     string
		dialect string
		wantErr bool
	}{
		{in: "sqlite:file:x.db", drv: "sqlite3", dialect: "sqlite3"},
		{in: "SQLite:", drv: "sqlite3", dialect: "sqlite3"},
		{in: "postgres://u:p@h:5432/db", drv: "pgx", dialect: "postgres"},
		{in: "host=localhost user=u dbname=db", drv: "pgx", dialect: "postgres"},
		{in: "mysql://u@h/db", wantErr: true},
		{in: "nonsense", wantErr: true},
	}
	for _, tc := range cases {
		drv, _, dia, err := parseDSN(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if drv != tc.drv || dia != tc.dialect {
			t.Errorf("%q: got (%s, %s) want (%s, %s)", tc.in, drv, dia, tc.drv, tc.dialect)
		}
	}
}

func TestRecordsTableFromSchema(t *testing.T) {
	var names []string
	for _, c := range RecordsTable.Columns {
		names = append(names, c.Name)
	}
	want := []string{"id", colCorpus, colSeq, colCircuit, colShots, colCounts, colCreated}
	if len(names) != len(want) {
		t.Fatalf("columns=%v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("columns=%v want %v", names, want)
		}
	}
	if len(RecordsTable.Indexes) != 1 || !RecordsTable.Indexes[0].Unique || len(RecordsTable.Indexes[0].Columns) != 2 {
		t.Fatalf("unexpected indexes: %+v", RecordsTable.Indexes)
	}
}
