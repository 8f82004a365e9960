package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LEARN_DATABASE_URL", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCatalogValidate_ShippedCatalog(t *testing.T) {
	out, err := execute(t, "catalog", "validate", "--path", "../../catalog")
	if err != nil {
		t.Fatalf("catalog validate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "arrays") || !strings.Contains(out, "topic(s) OK") {
		t.Errorf("output = %q", out)
	}
}

func TestCatalogValidate_MissingDir(t *testing.T) {
	if _, err := execute(t, "catalog", "validate", "--path", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing catalog directory")
	}
}

func TestCommandsRequireDatabase(t *testing.T) {
	tests := [][]string{
		{"migrate"},
		{"catalog", "seed", "--path", "../../catalog"},
		{"export-leaderboard"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := execute(t, args...)
			if err == nil || !strings.Contains(err.Error(), "no database configured") {
				t.Errorf("error = %v, want missing database error", err)
			}
		})
	}
}

func TestCatalogSeed_EmptyCatalog(t *testing.T) {
	_, err := execute(t, "catalog", "seed", "--path", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "catalog is empty") {
		t.Errorf("error = %v, want empty catalog error", err)
	}
}

func TestWriteWorkbook(t *testing.T) {
	entries := []progress.LeaderboardEntry{{Rank: 1, UserID: "u1", Name: "Ada", Score: 300, Level: 1}}
	path := filepath.Join(t.TempDir(), "board.xlsx")

	if err := writeWorkbook(nil, path, entries); err != nil {
		t.Fatalf("writeWorkbook() error = %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue(report.LeaderboardSheet, "B2"); v != "Ada" {
		t.Errorf("B2 = %q, want Ada", v)
	}

	var stdout bytes.Buffer
	if err := writeWorkbook(&stdout, "-", entries); err != nil {
		t.Fatalf("writeWorkbook(-) error = %v", err)
	}
	if stdout.Len() == 0 {
		t.Error("nothing written to stdout")
	}
	if _, err := os.Stat("-"); err == nil {
		t.Error("a file named - was created")
	}
}
