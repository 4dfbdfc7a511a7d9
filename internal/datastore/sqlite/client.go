package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/pkg/logger"
)

// Client is the SQLite-backed datastore.Store holding the sales dataset.
type Client struct {
	db    *sql.DB
	table string

	mu         sync.Mutex
	schemaText string
}

func NewClient(dbPath, table string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	logger.Info("SQLite client initialized",
		zap.String("path", dbPath),
		zap.String("table", table),
	)

	return &Client{db: db, table: table}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// LoadCSV imports the processed sales CSV into the sales table. Loading is
// idempotent: an already-populated table is left untouched.
func (c *Client) LoadCSV(ctx context.Context, csvPath string) error {
	var existing int
	err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)).Scan(&existing)
	if err == nil && existing > 0 {
		logger.Info("Using existing sales table", zap.Int("rows", existing))
		return nil
	}

	file, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := normalizeColumns(header)

	records := make([][]string, 0, 4096)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip short or garbled lines the way the original loader does.
			continue
		}
		if len(record) != len(columns) {
			continue
		}
		records = append(records, record)
	}

	types := inferColumnTypes(columns, records)

	if err := c.createTable(ctx, columns, types); err != nil {
		return err
	}
	if err := c.insertRecords(ctx, columns, types, records); err != nil {
		return err
	}
	c.createIndexes(ctx, columns)

	logger.Info("Sales dataset loaded",
		zap.String("path", csvPath),
		zap.Int("rows", len(records)),
		zap.Int("columns", len(columns)),
	)

	return nil
}

func (c *Client) createTable(ctx context.Context, columns []string, types map[string]string) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s %s", col, types[col])
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.table, strings.Join(defs, ", "))
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create sales table: %w", err)
	}
	return nil
}

func (c *Client) insertRecords(ctx context.Context, columns []string, types map[string]string, records [][]string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		c.table, strings.Join(columns, ", "), placeholders,
	))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(columns))
	for _, record := range records {
		for i, raw := range record {
			args[i] = convertValue(raw, types[columns[i]])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

func (c *Client) createIndexes(ctx context.Context, columns []string) {
	indexed := map[string]bool{
		"date": true, "year": true, "month": true, "quarter": true,
		"category": true, "state": true, "status": true, "sku": true,
	}
	for _, col := range columns {
		if !indexed[col] {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", c.table, col, c.table, col)
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			logger.Warn("Failed to create index", zap.String("column", col), zap.Error(err))
		}
	}
}

// Execute runs one read-only query. Store connectivity faults map to
// ErrStoreUnavailable; anything the engine rejects maps to MalformedQueryError
// so the orchestrator can tell a generation fault from an infrastructure one.
func (c *Client) Execute(ctx context.Context, query string) (*datastore.ExecutionResult, error) {
	if err := c.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", datastore.ErrStoreUnavailable, err)
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", datastore.ErrStoreUnavailable, ctx.Err())
		}
		return nil, &datastore.MalformedQueryError{Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &datastore.MalformedQueryError{Query: query, Err: err}
	}

	result := &datastore.ExecutionResult{Columns: columns}

	values := make([]interface{}, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", datastore.ErrStoreUnavailable, err)
	}

	logger.Debug("Query executed",
		zap.Int("rows", result.RowCount()),
		zap.Int("columns", len(result.Columns)),
	)

	return result, nil
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func normalizeColumns(header []string) []string {
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		name = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		columns[i] = name
	}
	return columns
}

const typeSampleSize = 200

func inferColumnTypes(columns []string, records [][]string) map[string]string {
	types := make(map[string]string, len(columns))

	for i, col := range columns {
		sampled := 0
		isInt, isReal, isBool := true, true, true

		for _, record := range records {
			if sampled >= typeSampleSize {
				break
			}
			raw := strings.TrimSpace(record[i])
			if raw == "" {
				continue
			}
			sampled++

			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				isReal = false
			}
			switch strings.ToLower(raw) {
			case "true", "false", "0", "1":
			default:
				isBool = false
			}
		}

		switch {
		case sampled == 0:
			types[col] = "TEXT"
		case isBool && !isInt:
			types[col] = "INTEGER"
		case isInt:
			types[col] = "INTEGER"
		case isReal:
			types[col] = "REAL"
		default:
			types[col] = "TEXT"
		}
	}

	return types
}

func convertValue(raw, sqlType string) interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch sqlType {
	case "INTEGER":
		switch strings.ToLower(raw) {
		case "true":
			return int64(1)
		case "false":
			return int64(0)
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		return raw
	case "REAL":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	default:
		return raw
	}
}
