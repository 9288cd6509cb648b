package entstore

import (
	"context"
	"fmt"
	"testing"
)

// openMemory opens a migrated in-memory SQLite store private to the test.
func openMemory(t *testing.T, name string) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_fk=1", name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}
