package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV reads a header-first CSV into columns and rows. Every cell is kept
// as text; blank cells stay blank so they read back as null.
func ReadCSV(r io.Reader) ([]string, []Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("read csv header: %w", ErrDataUnavailable)
		}
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	rows := make([]Row, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv record: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// LoadCSV reads a CSV file into a Memory source under the given table name.
func (m *Memory) LoadCSV(table, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	columns, rows, err := ReadCSV(file)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	m.Put(table, columns, rows)
	return nil
}

// WriteCSV writes columns and text records as CSV.
func WriteCSV(w io.Writer, columns []string, records [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
