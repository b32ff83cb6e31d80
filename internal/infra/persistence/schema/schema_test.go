package schema

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	ddl := "-- header\nCREATE TABLE a (\n  id TEXT\n);\n\nCREATE INDEX a_idx ON a(id);\nSELECT 1"
	stmts := SplitStatements(ddl)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") || !strings.HasSuffix(stmts[0], ");") {
		t.Fatalf("unexpected first statement %q", stmts[0])
	}
	if stmts[2] != "SELECT 1" {
		t.Fatalf("unterminated tail not kept: %q", stmts[2])
	}
}

func TestEmbeddedDDLDefinesStateTable(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres()} {
		stmts := SplitStatements(ddl)
		if len(stmts) != 1 {
			t.Fatalf("%s: expected a single statement, got %d", name, len(stmts))
		}
		if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS state") {
			t.Fatalf("%s: state table missing: %s", name, stmts[0])
		}
	}
}
