package main

import (
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
)

func TestReportPath(t *testing.T) {
	tests := []struct {
		prefix, src, want string
	}{
		{"", "exports/jan.json", ""},
		{"out", "exports/jan.json", "out/jan.report.json"},
		{"gs://bucket/reports/", "gs://bucket/exports/feb.csv", "gs://bucket/reports/feb.report.json"},
		{"out", "bigquery", "out/bigquery.report.json"},
	}
	for _, tt := range tests {
		if got := reportPath(tt.prefix, tt.src); got != tt.want {
			t.Errorf("reportPath(%q, %q) = %q, want %q", tt.prefix, tt.src, got, tt.want)
		}
	}
}

func TestMetaFlag(t *testing.T) {
	m := metaFlag{}
	if err := m.Set("monthly_cost = 499"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := m.Set("subscription_name=Netflix Premium"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if m["monthly_cost"] != "499" || m["subscription_name"] != "Netflix Premium" {
		t.Errorf("meta = %v", m)
	}

	for _, bad := range []string{"novalue", "=5"} {
		if err := m.Set(bad); err == nil {
			t.Errorf("Set(%q) expected error", bad)
		}
	}
}

func TestParseDateFlag(t *testing.T) {
	d, err := parseDateFlag("from", "2024-02-29")
	if err != nil {
		t.Fatalf("parseDateFlag() error = %v", err)
	}
	if d != (civil.Date{Year: 2024, Month: 2, Day: 29}) {
		t.Errorf("date = %v", d)
	}

	if d, err := parseDateFlag("from", ""); err != nil || d.IsValid() {
		t.Errorf("empty flag = %v, %v; want zero date", d, err)
	}
	if _, err := parseDateFlag("to", "29/02/2024"); err == nil {
		t.Error("expected error for bad date")
	}
}

func TestReadLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "inputs.txt")
	content := "# january\nexports/jan.json\n\n  gs://bucket/feb.csv  \n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := readLines(p)
	if err != nil {
		t.Fatalf("readLines() error = %v", err)
	}
	if len(lines) != 2 || lines[0] != "exports/jan.json" || lines[1] != "gs://bucket/feb.csv" {
		t.Errorf("lines = %q", lines)
	}

	if _, err := readLines(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"analyze", "batch", "import", "award", "stats", "leaderboard", "project"} {
		if _, ok := commands[name]; !ok {
			t.Errorf("command %q not registered", name)
		}
	}
}
