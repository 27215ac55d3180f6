package stock

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ReadCSV parses records from a CSV stream whose header names the columns.
// Column order is free; every column in Columns must be present. Extra
// columns are ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, column := range Columns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", column)
		}
	}

	records := make([]Record, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		record, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func parseRow(row []string, index map[string]int) (Record, error) {
	var record Record

	rawDate := strings.TrimSpace(row[index["date"]])
	date, err := time.Parse(DateLayout, rawDate)
	if err != nil {
		return Record{}, fmt.Errorf("column %q: invalid date %q", "date", rawDate)
	}
	record.Date = date

	rawVolume := strings.TrimSpace(row[index["volume"]])
	volume, err := strconv.ParseInt(rawVolume, 10, 64)
	if err != nil {
		// Some exports write integral volumes as floats ("92826000.0").
		asFloat, floatErr := strconv.ParseFloat(rawVolume, 64)
		if floatErr != nil || asFloat != float64(int64(asFloat)) {
			return Record{}, fmt.Errorf("column %q: invalid integer %q", "volume", rawVolume)
		}
		volume = int64(asFloat)
	}
	record.Volume = volume

	for name, dst := range record.floatFields() {
		raw := strings.TrimSpace(row[index[name]])
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %q: invalid number %q", name, raw)
		}
		*dst = value
	}
	return record, nil
}

func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		values := record.Values()
		row := make([]string, len(values))
		for i, value := range values {
			switch typed := value.(type) {
			case time.Time:
				row[i] = typed.Format(DateLayout)
			case int64:
				row[i] = strconv.FormatInt(typed, 10)
			case float64:
				row[i] = strconv.FormatFloat(typed, 'f', -1, 64)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
