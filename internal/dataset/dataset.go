// Package dataset reads SMILES training records from disk.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrNoRecords is returned when a file holds no usable records.
	ErrNoRecords = errors.New("dataset has no records")
	// ErrNoColumn is returned when a CSV header has no SMILES column.
	ErrNoColumn = errors.New("no SMILES column in header")
)

// Format identifies a record file layout.
type Format string

const (
	FormatLines Format = "lines"
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// FormatFor picks a format from the file extension. Anything unrecognised
// is treated as one record per line.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatLines
	}
}

// Load reads every record in path.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := Read(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read parses records from r in the given format. Blank records are
// skipped.
func Read(r io.Reader, format Format) ([]string, error) {
	var (
		records []string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatJSONL:
		records, err = readJSONL(r)
	case FormatLines:
		records, err = readLines(r)
	default:
		return nil, fmt.Errorf("unknown dataset format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// readLines takes the first whitespace-separated field of each line, so
// .smi files carrying a trailing molecule name work unchanged.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.Fields(line)[0])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return out, nil
}

func readCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "smiles") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoColumn
	}

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if s := strings.TrimSpace(rec[col]); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

type jsonRecord struct {
	SMILES string `json:"smiles"`
}

func readJSONL(r io.Reader) ([]string, error) {
	var out []string
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var rec jsonRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read jsonl record %d: %w", line, err)
		}
		if s := strings.TrimSpace(rec.SMILES); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
