// Package source supplies shipment source data from files and writes
// per-row results back into them.
package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

const moduleName = "source"

// Result columns appended to the source on write-back.
const (
	colTracking = "tracking_number"
	colLabel    = "label_path"
	colCost     = "shipping_cost"
)

// CSVSource reads shipment rows from a CSV file with a header row and
// writes shipment results back into dedicated result columns. Row numbers
// are 1-based data row positions, excluding the header.
type CSVSource struct {
	path string

	mu      sync.Mutex
	header  []string
	records [][]string
	loaded  bool
}

// NewCSVSource creates a source over the given CSV file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

var _ port.DataSource = (*CSVSource)(nil)

// Name identifies the source for display and logging.
func (s *CSVSource) Name() string {
	return s.path
}

// load reads the file once and caches header and records.
func (s *CSVSource) load() error {
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to open source file %s", s.path), err, false)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	all, err := reader.ReadAll()
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to parse source file %s", s.path), err, false)
	}
	if len(all) == 0 {
		return exception.NewBatchError(moduleName, fmt.Sprintf("source file %s has no header row", s.path), nil, false)
	}

	s.header = all[0]
	s.records = all[1:]
	s.loaded = true
	return nil
}

// Rows returns the data rows in file order.
func (s *CSVSource) Rows(ctx context.Context) ([]port.SourceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}

	rows := make([]port.SourceRow, 0, len(s.records))
	for i, record := range s.records {
		rows = append(rows, port.SourceRow{Number: i + 1, Data: s.rowData(record)})
	}
	return rows, nil
}

// Row returns a single data row by its 1-based position.
func (s *CSVSource) Row(ctx context.Context, rowNumber int) (port.SourceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return port.SourceRow{}, err
	}
	if rowNumber < 1 || rowNumber > len(s.records) {
		return port.SourceRow{}, exception.NewBatchError(moduleName,
			fmt.Sprintf("row %d is out of range for source %s (%d rows)", rowNumber, s.path, len(s.records)), nil, false)
	}
	return port.SourceRow{Number: rowNumber, Data: s.rowData(s.records[rowNumber-1])}, nil
}

// rowData maps a record onto the header columns, padding short records.
func (s *CSVSource) rowData(record []string) map[string]interface{} {
	data := make(map[string]interface{}, len(s.header))
	for j, col := range s.header {
		if j < len(record) {
			data[col] = record[j]
		} else {
			data[col] = ""
		}
	}
	return data
}

// WriteBack records a row's shipment outcome into the result columns and
// rewrites the file. The whole file is rewritten atomically via a temp
// file so a crash mid-write cannot corrupt the source.
func (s *CSVSource) WriteBack(ctx context.Context, rowNumber int, trackingNumber, labelPath string, costCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if rowNumber < 1 || rowNumber > len(s.records) {
		return exception.NewBatchError(moduleName,
			fmt.Sprintf("row %d is out of range for source %s (%d rows)", rowNumber, s.path, len(s.records)), nil, false)
	}

	s.ensureResultColumns()

	record := s.records[rowNumber-1]
	for len(record) < len(s.header) {
		record = append(record, "")
	}
	record[s.columnIndex(colTracking)] = trackingNumber
	record[s.columnIndex(colLabel)] = labelPath
	record[s.columnIndex(colCost)] = model.FormatMoneyCents(costCents)
	s.records[rowNumber-1] = record

	return s.persist()
}

// ensureResultColumns appends the result columns to the header if absent.
func (s *CSVSource) ensureResultColumns() {
	for _, col := range []string{colTracking, colLabel, colCost} {
		if s.columnIndex(col) < 0 {
			s.header = append(s.header, col)
		}
	}
}

func (s *CSVSource) columnIndex(name string) int {
	for i, col := range s.header {
		if col == name {
			return i
		}
	}
	return -1
}

// persist rewrites the source file from the cached header and records.
func (s *CSVSource) persist() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".shipbatch-*.csv")
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to create temp file for write-back", err, true)
	}
	tmpPath := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(s.header); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return exception.NewBatchError(moduleName, "failed to write header during write-back", err, true)
	}
	for _, record := range s.records {
		padded := record
		for len(padded) < len(s.header) {
			padded = append(padded, "")
		}
		if err := writer.Write(padded); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return exception.NewBatchError(moduleName, "failed to write record during write-back", err, true)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return exception.NewBatchError(moduleName, "failed to flush write-back", err, true)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return exception.NewBatchError(moduleName, "failed to close temp file during write-back", err, true)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return exception.NewBatchError(moduleName, "failed to replace source file during write-back", err, true)
	}
	return nil
}
