package store

import (
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/ctorder/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run header with minimal required fields.
func createTestRun(id, class string) ir.Run {
	return ir.Run{
		ID:            id,
		Class:         class,
		Constructor:   ir.DefaultConstructor,
		SpecHash:      "test-hash",
		PlanHash:      "test-plan",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Outcome:       ir.OutcomeLive,
	}
}

// createTestEvent creates an output event.
func createTestEvent(runID string, seq int64, detail string) ir.Event {
	return ir.Event{
		Seq:    seq,
		RunID:  runID,
		Kind:   ir.EventOutput,
		Object: "D",
		Path:   "D",
		Class:  "D",
		Detail: detail,
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func contains(list []string, s string) bool {
	return slices.Contains(list, s)
}
