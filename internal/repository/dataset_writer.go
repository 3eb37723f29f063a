package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stanstork/adscope-api/internal/migration"
)

var scopeColumns = []string{"account_id", "run_id", "date_range_start", "date_range_end"}

func scopeValues(params ApplyParams) []interface{} {
	var start, end interface{}
	if params.DateRangeStart != nil {
		start = *params.DateRangeStart
	}
	if params.DateRangeEnd != nil {
		end = *params.DateRangeEnd
	}
	return []interface{}{params.AccountID, params.RunID, start, end}
}

func upsertStatement(spec dataset.Spec) string {
	columns := append(append([]string{}, scopeColumns...), spec.ColumnNames()...)

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	conflict := append([]string{"account_id", "run_id"}, spec.Key...)
	isKey := make(map[string]bool, len(conflict))
	for _, k := range conflict {
		isKey[k] = true
	}

	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		if isKey[c] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	updates = append(updates, "updated_at = NOW()")

	return fmt.Sprintf(
		"INSERT INTO %s.%s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		migration.Schema, spec.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(conflict, ", "),
		strings.Join(updates, ", "),
	)
}

// upsertRows writes each row keyed by its natural key. A later row with the same key
// replaces the earlier one, including within the same chunk.
func upsertRows(ctx context.Context, tx *sql.Tx, spec dataset.Spec, params ApplyParams, rows []dataset.Row) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, upsertStatement(spec))
	if err != nil {
		return 0, fmt.Errorf("prepare %s upsert: %w", spec.Name, err)
	}
	defer stmt.Close()

	scope := scopeValues(params)
	var applied int64
	for i, row := range rows {
		args := append(append([]interface{}{}, scope...), spec.Values(row)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return applied, fmt.Errorf("upsert %s row %d: %w", spec.Name, i, err)
		}
		applied++
	}
	return applied, nil
}

// appendRows bulk inserts rows with COPY. Append datasets have no natural key.
func appendRows(ctx context.Context, tx *sql.Tx, spec dataset.Spec, params ApplyParams, rows []dataset.Row) (int64, error) {
	columns := append(append([]string{}, scopeColumns...), spec.ColumnNames()...)

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(migration.Schema, spec.Table, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare %s copy: %w", spec.Name, err)
	}
	defer stmt.Close()

	scope := scopeValues(params)
	var applied int64
	for i, row := range rows {
		args := append(append([]interface{}{}, scope...), spec.Values(row)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("copy %s row %d: %w", spec.Name, i, err)
		}
		applied++
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("flush %s copy: %w", spec.Name, err)
	}
	return applied, nil
}
