package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitStatementsRespectsStrings(t *testing.T) {
	in := `insert into t(name) values ('a;b'); create table x (id int);`
	stmts := splitStatements(in)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
}

func TestSplitStatementsKeepsTrailingStatement(t *testing.T) {
	stmts := splitStatements(`select 1`)
	if len(stmts) != 1 {
		t.Fatalf("expected trailing statement kept, got %v", stmts)
	}
}

func TestCollectSQLOrdersByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	files, err := collectSQL(dir, ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].name != "0001_a.up.sql" || files[1].name != "0002_b.up.sql" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(filepath.Join(t.TempDir(), "nope"), ".sql")
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if files != nil {
		t.Fatalf("expected nil, got %v", files)
	}
}
