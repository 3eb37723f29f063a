package migration

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigrations(t *testing.T) string {
	t.Helper()
	files, err := fs.Glob(embeddedMigrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var all strings.Builder
	for _, f := range files {
		body, err := fs.ReadFile(embeddedMigrations, f)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", f)
		assert.Contains(t, string(body), "-- +goose Down", f)
		all.Write(body)
	}
	return all.String()
}

func TestEveryDatasetHasATable(t *testing.T) {
	sql := readMigrations(t)

	for _, spec := range dataset.All() {
		t.Run(string(spec.Name), func(t *testing.T) {
			table := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + Schema + `\.` + spec.Table + ` \((.*?)\n\);`)
			m := table.FindStringSubmatch(sql)
			require.NotNil(t, m, "no table for %s", spec.Table)
			ddl := m[1]

			for _, col := range spec.ColumnNames() {
				assert.Regexp(t, `\n\s+`+col+`\s`, ddl, "column %s", col)
			}
			if spec.Mode == dataset.Upsert {
				key := "UNIQUE (account_id, run_id, " + strings.Join(spec.Key, ", ") + ")"
				assert.Contains(t, ddl, key)
			} else {
				assert.NotContains(t, ddl, "UNIQUE")
			}
		})
	}
}

func TestChunkLedgerKey(t *testing.T) {
	sql := readMigrations(t)

	assert.Contains(t, sql, "CONSTRAINT import_chunks_run_dataset_index_key UNIQUE (run_id, dataset_name, chunk_index)")
}
