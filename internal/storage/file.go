package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// --- CSV Dataset ---

// CSVBackend keeps the dataset in a UTF-8 CSV file with one header row.
type CSVBackend struct {
	path   string
	logger *slog.Logger
}

// NewCSVBackend creates a CSV backend for path. The file is created on the
// first save.
func NewCSVBackend(path string, logger *slog.Logger) *CSVBackend {
	return &CSVBackend{
		path:   path,
		logger: logger.With("component", "csv_storage"),
	}
}

func (b *CSVBackend) Name() string { return "csv" }

// Path returns the dataset file path.
func (b *CSVBackend) Path() string { return b.path }

// Load reads the dataset. Columns the header names but the built-in schemas
// do not know are kept as unit-less nutrient columns.
func (b *CSVBackend) Load(_ context.Context) (*Dataset, error) {
	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var schema types.Schema
	for _, name := range header {
		name = strings.TrimSpace(name)
		if name == "" || types.IsFixedColumn(name) || schema.Has(name) {
			continue
		}
		col, ok := types.KnownColumn(name)
		if !ok {
			col = types.Column{Name: name}
		}
		schema.Columns = append(schema.Columns, col)
	}

	ds := &Dataset{Schema: schema}
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		ds.Records = append(ds.Records, parseRow(header, row, schema))
	}

	b.logger.Debug("dataset loaded", "path", b.path, "records", len(ds.Records), "columns", schema.Len())
	return ds, nil
}

func parseRow(header, row []string, schema types.Schema) *types.Record {
	rec := types.NewRecord(schema, "", "", "")
	for i, name := range header {
		if i >= len(row) {
			break
		}
		cell := row[i]
		switch strings.TrimSpace(name) {
		case types.ColumnProductName:
			rec.ProductName = cell
		case types.ColumnSourceURL:
			rec.SourceURL = cell
		case types.ColumnCategory:
			rec.Category = cell
		case types.ColumnPortionGrams:
			rec.PortionGrams = normalize.Number(cell)
		case "":
		default:
			rec.Set(strings.TrimSpace(name), normalize.Number(cell))
		}
	}
	return rec
}

// Save rewrites the dataset file atomically.
func (b *CSVBackend) Save(_ context.Context, ds *Dataset) error {
	err := writeAtomic(b.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(ds.Schema.Header()); err != nil {
			return err
		}
		for _, rec := range ds.Records {
			if err := cw.Write(rec.Row(ds.Schema)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	b.logger.Debug("dataset saved", "path", b.path, "records", len(ds.Records))
	return nil
}

func (b *CSVBackend) Close() error { return nil }

// --- URL List ---

// SaveURLList writes urls to path as a JSON array, replacing the file.
func SaveURLList(path string, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	err := writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(urls)
	})
	if err != nil {
		return &types.StorageError{Backend: "url_list", Op: "save", Err: err}
	}
	return nil
}

// LoadURLList reads the JSON array of URLs at path.
func LoadURLList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "url_list", Op: "load", Err: err}
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, &types.StorageError{Backend: "url_list", Op: "load", Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	return urls, nil
}

// writeAtomic writes to a temporary file next to path and renames it into
// place, so readers never observe a partial file.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
