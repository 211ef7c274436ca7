package main

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/migrations"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0012_create_rewards.sql", true, 12, "create_rewards"},
		{"001_invalid.sql", false, 0, ""},       // wrong number format
		{"0001_test", false, 0, ""},             // missing .sql
		{"0001.sql", false, 0, ""},              // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if ok && (m.Version != tt.version || m.Name != tt.name) {
				t.Errorf("got version %d name %q, want %d %q", m.Version, m.Name, tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	content := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);"
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte(content)},
		"0001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("notes")},
	}

	got, err := readMigrations(fsys, "proj", "ds", logger.Nop())
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 2 {
		t.Fatalf("migrations = %+v, want versions 1 and 2", got)
	}
	if got[1].SQL != "CREATE TABLE `proj.ds.t` (id INT64);" {
		t.Errorf("SQL = %q", got[1].SQL)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256([]byte(content))); got[1].Checksum != want {
		t.Errorf("checksum = %s, want checksum of the unrendered file", got[1].Checksum)
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := readMigrations(fsys, "p", "d", logger.Nop()); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	a := fstest.MapFS{"0001_x.sql": {Data: []byte("CREATE TABLE test (id INT64);")}}
	b := fstest.MapFS{"0001_x.sql": {Data: []byte("CREATE TABLE different (id INT64);")}}

	first, _ := readMigrations(a, "p1", "d1", logger.Nop())
	again, _ := readMigrations(a, "p2", "d2", logger.Nop())
	other, _ := readMigrations(b, "p1", "d1", logger.Nop())

	if first[0].Checksum != again[0].Checksum {
		t.Error("same content should produce the same checksum across datasets")
	}
	if first[0].Checksum == other[0].Checksum {
		t.Error("different content should produce different checksums")
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{
		{Version: 1, Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Filename: "0003_c.sql", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "changed"},
	}

	pending := pendingMigrations(all, applied, logger.Nop())
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("pending = %+v, want only version 3", pending)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrations.BigQuery, "bigquery")
	if err != nil {
		t.Fatal(err)
	}
	got, err := readMigrations(sub, "proj", "finance", logger.Nop())
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(got) < 4 {
		t.Fatalf("embedded migrations = %d, want at least 4", len(got))
	}

	var all strings.Builder
	for i, m := range got {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d, want contiguous versions", i, m.Version)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s has unrendered placeholders", m.Filename)
		}
		all.WriteString(m.SQL)
	}
	for _, tbl := range []string{"transactions", "reward_entries", "user_scores", "analysis_reports"} {
		if !strings.Contains(all.String(), "`proj.finance."+tbl+"`") {
			t.Errorf("no migration creates %s", tbl)
		}
	}
}
