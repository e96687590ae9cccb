// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build duckdb

package export

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// Exporter walks datasets through the data facade and writes them into a
// DuckDB file.
type Exporter struct {
	api dataserver.API
	cfg config.ExportConfig
}

var _ api.Exporter = (*Exporter)(nil)

// New creates an exporter over the data facade.
func New(facade dataserver.API, cfg config.ExportConfig) *Exporter {
	return &Exporter{api: facade, cfg: cfg}
}

// Export implements api.Exporter. Empty req.Paths exports every dataset.
func (e *Exporter) Export(r *http.Request, req api.ExportRequest) (interface{}, error) {
	start := time.Now()
	res, err := e.export(r.Context(), req)
	metrics.RecordExport(time.Since(start), err)
	return res, err
}

func (e *Exporter) export(ctx context.Context, req api.ExportRequest) (*Result, error) {
	start := time.Now()
	paths := req.Paths
	if len(paths) == 0 {
		var err error
		paths, err = e.discover(ctx, "/")
		if err != nil {
			return nil, err
		}
	}

	file, err := e.resolveFile(req.File)
	if err != nil {
		return nil, err
	}
	db, err := e.open(file)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	result := &Result{File: file}
	for _, path := range paths {
		ds, err := e.exportDataset(ctx, db, path)
		if err != nil {
			return nil, fmt.Errorf("export %q: %w", path, err)
		}
		result.Datasets = append(result.Datasets, ds)
	}

	logging.Info().
		Str("file", file).
		Int("datasets", len(result.Datasets)).
		Dur("elapsed", time.Since(start)).
		Msg("export finished")
	return result, nil
}

// discover walks the hierarchy below path and returns every dataset path
// in sorted order.
func (e *Exporter) discover(ctx context.Context, path string) ([]string, error) {
	info, err := e.api.Node(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.Kind == store.NodeDataset {
		return []string{path}, nil
	}

	keys, err := e.api.Keys(ctx, path)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	var out []string
	for _, key := range keys {
		child := strings.TrimSuffix(path, "/") + "/" + key
		sub, err := e.discover(ctx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (e *Exporter) resolveFile(file string) (string, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(e.cfg.Dir, file)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	return file, nil
}

func (e *Exporter) open(file string) (*sql.DB, error) {
	settings := url.Values{}
	if e.cfg.MaxMemory != "" {
		settings.Set("max_memory", e.cfg.MaxMemory)
	}
	if e.cfg.Threads > 0 {
		settings.Set("threads", fmt.Sprintf("%d", e.cfg.Threads))
	}
	dsn := file
	if len(settings) > 0 {
		dsn += "?" + settings.Encode()
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// exportDataset reads one dataset in full and writes it as a table.
func (e *Exporter) exportDataset(ctx context.Context, db *sql.DB, path string) (DatasetResult, error) {
	info, err := e.api.Node(ctx, path)
	if err != nil {
		return DatasetResult{}, err
	}
	if info.Kind != store.NodeDataset {
		return DatasetResult{}, fmt.Errorf("node %q: %w", path, store.ErrNotADataset)
	}

	batch, err := e.api.Values(ctx, path, nil, nil, "")
	if err != nil {
		return DatasetResult{}, err
	}

	table := TableName(path)
	columns := tableColumns(batch.Schema)
	if err := createTable(ctx, db, table, columns); err != nil {
		return DatasetResult{}, err
	}
	if err := insertRows(ctx, db, table, columns, batch); err != nil {
		return DatasetResult{}, err
	}
	return DatasetResult{Path: path, Table: table, Rows: batch.Rows}, nil
}

// column is one table column with its source key in ColumnValues.
type column struct {
	name    string
	key     string
	sqlType string
	shaped  bool
}

// tableColumns maps the dataset schema onto DuckDB columns. A plain
// schema yields a single "value" column keyed by the empty field name.
func tableColumns(schema *record.Schema) []column {
	if schema == nil || !schema.Compound() {
		shaped := schema != nil && len(schema.Shape) > 0
		elem := record.KindFloat64
		if schema != nil {
			elem = schema.Elem
		}
		return []column{{name: "value", key: "", sqlType: sqlType(elem, shaped), shaped: shaped}}
	}
	out := make([]column, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		shaped := len(f.Shape) > 0
		out = append(out, column{
			name:    TableName(f.Name),
			key:     f.Name,
			sqlType: sqlType(f.Kind, shaped),
			shaped:  shaped,
		})
	}
	return out
}

// sqlType picks the DuckDB type for a field. Shaped fields go in as JSON
// text.
func sqlType(kind record.Kind, shaped bool) string {
	if shaped {
		return "VARCHAR"
	}
	switch kind {
	case record.KindFloat64:
		return "DOUBLE"
	case record.KindInt64:
		return "BIGINT"
	case record.KindBool:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func createTable(ctx context.Context, db *sql.DB, table string, columns []column) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, "row_id BIGINT NOT NULL")
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("%s %s", c.name, c.sqlType))
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// insertRows streams the batch into the table inside one transaction.
func insertRows(ctx context.Context, db *sql.DB, table string, columns []column, batch *record.Batch) error {
	if batch.Empty() {
		return nil
	}
	values := batch.ColumnValues()

	placeholders := make([]string, len(columns)+1)
	names := make([]string, len(columns)+1)
	names[0] = "row_id"
	placeholders[0] = "?"
	for i, c := range columns {
		names[i+1] = c.name
		placeholders[i+1] = "?"
	}
	stmtText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stmtText)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for row := 0; row < batch.Rows; row++ {
		args := make([]interface{}, 0, len(columns)+1)
		args = append(args, int64(row))
		for _, c := range columns {
			v := values[c.key][row]
			if c.shaped {
				text, err := json.Marshal(v)
				if err != nil {
					return fmt.Errorf("encode row %d of %s: %w", row, c.name, err)
				}
				v = string(text)
			}
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", row, table, err)
		}
	}
	return tx.Commit()
}
