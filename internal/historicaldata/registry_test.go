package historicaldata

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeriesCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const sampleCSV = "year,month,stocks,bonds,gold\n" +
	"2000,1,100,50,300\n" +
	"2000,2,101,50.1,301\n" +
	"2000,3,102,50.2,299\n"

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeSeriesCSV(t, dir, "series.csv", sampleCSV)

	rows, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Year != 2000 || rows[0].Month != 1 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeSeriesCSV(t, dir, "bad.csv", "year,month,stocks,bonds\n2000,1,100,50\n")
	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected an error for a missing gold column")
	}
}

func TestRegistry_RegisterAndVerifyHash(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeSeriesCSV(t, dir, "series.csv", sampleCSV)

	reg, err := Open(filepath.Join(dir, "catalog"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	d, err := reg.Register("demo", dataPath)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.VerifyHash(d.ID); err != nil {
		t.Fatalf("VerifyHash on untouched file: %v", err)
	}

	if err := os.WriteFile(dataPath, []byte(sampleCSV+"2000,4,103,50.3,298\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := reg.VerifyHash(d.ID); err == nil {
		t.Fatal("expected VerifyHash to fail after the file changed")
	}
}

func TestRegistry_RejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeSeriesCSV(t, dir, "series.csv", sampleCSV)

	reg, err := Open(filepath.Join(dir, "catalog"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := reg.Register("demo", dataPath); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register("demo", dataPath); err == nil {
		t.Fatal("expected an error registering a duplicate name")
	}
}

func TestRegistry_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeSeriesCSV(t, dir, "series.csv", sampleCSV)
	catalogDir := filepath.Join(dir, "catalog")

	reg, err := Open(catalogDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d, err := reg.Register("demo", dataPath)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	reopened, err := Open(catalogDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(d.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Name != "demo" {
		t.Errorf("expected name %q to persist, got %q", "demo", got.Name)
	}
}
