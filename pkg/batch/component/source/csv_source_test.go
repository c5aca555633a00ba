package source

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeCSV(t *testing.T, dir string, rows [][]string) string {
	path := filepath.Join(dir, "orders.csv")
	f, err := os.Create(path)
	assert.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	assert.NoError(t, w.WriteAll(rows))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)
	return all
}

func TestRowsParsesDataRows(t *testing.T) {
	path := writeCSV(t, t.TempDir(), [][]string{
		{"recipient_name", "city", "weight"},
		{"Alice", "Springfield", "2.5"},
		{"Bob", "Shelbyville", "1.0"},
	})
	src := NewCSVSource(path)

	rows, err := src.Rows(context.Background())
	assert.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "Alice", rows[0].Data["recipient_name"])
	assert.Equal(t, "Springfield", rows[0].Data["city"])
	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, "Bob", rows[1].Data["recipient_name"])
}

func TestRowFetchesSingleRow(t *testing.T) {
	path := writeCSV(t, t.TempDir(), [][]string{
		{"recipient_name", "city"},
		{"Alice", "Springfield"},
		{"Bob", "Shelbyville"},
	})
	src := NewCSVSource(path)

	row, err := src.Row(context.Background(), 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, row.Number)
	assert.Equal(t, "Bob", row.Data["recipient_name"])

	_, err = src.Row(context.Background(), 0)
	assert.Error(t, err)
	_, err = src.Row(context.Background(), 3)
	assert.Error(t, err)
}

func TestRowsFailsOnMissingFile(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := src.Rows(context.Background())
	assert.Error(t, err)
}

func TestWriteBackAddsResultColumns(t *testing.T) {
	path := writeCSV(t, t.TempDir(), [][]string{
		{"recipient_name", "city"},
		{"Alice", "Springfield"},
		{"Bob", "Shelbyville"},
	})
	src := NewCSVSource(path)

	assert.NoError(t, src.WriteBack(context.Background(), 2, "1Z555", "/labels/555.pdf", 1275))

	all := readCSV(t, path)
	assert.Equal(t, []string{"recipient_name", "city", "tracking_number", "label_path", "shipping_cost"}, all[0])
	// Untouched rows get empty result cells.
	assert.Equal(t, []string{"Alice", "Springfield", "", "", ""}, all[1])
	assert.Equal(t, []string{"Bob", "Shelbyville", "1Z555", "/labels/555.pdf", "12.75"}, all[2])
}

func TestWriteBackReusesExistingResultColumns(t *testing.T) {
	path := writeCSV(t, t.TempDir(), [][]string{
		{"recipient_name", "tracking_number", "label_path", "shipping_cost"},
		{"Alice", "1ZOLD", "/labels/old.pdf", "1.00"},
	})
	src := NewCSVSource(path)

	assert.NoError(t, src.WriteBack(context.Background(), 1, "1ZNEW", "/labels/new.pdf", 250))

	all := readCSV(t, path)
	assert.Len(t, all[0], 4)
	assert.Equal(t, []string{"Alice", "1ZNEW", "/labels/new.pdf", "2.50"}, all[1])
}

func TestWriteBackRejectsOutOfRangeRow(t *testing.T) {
	path := writeCSV(t, t.TempDir(), [][]string{
		{"recipient_name"},
		{"Alice"},
	})
	src := NewCSVSource(path)

	assert.Error(t, src.WriteBack(context.Background(), 0, "1Z", "", 100))
	assert.Error(t, src.WriteBack(context.Background(), 2, "1Z", "", 100))
}

func TestResolverCachesPerPath(t *testing.T) {
	path := writeCSV(t, t.TempDir(), [][]string{
		{"recipient_name"},
		{"Alice"},
	})
	resolver := NewFileSourceResolver()
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, path)
	assert.NoError(t, err)
	second, err := resolver.Resolve(ctx, path)
	assert.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolverRejectsMissingAndUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	resolver := NewFileSourceResolver()
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	unsupported := filepath.Join(dir, "orders.parquet")
	assert.NoError(t, os.WriteFile(unsupported, []byte("x"), 0o644))
	_, err = resolver.Resolve(ctx, unsupported)
	assert.Error(t, err)
}
