package db

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndEmbedded(t *testing.T) {
	versions, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	assert.True(t, sort.StringsAreSorted(versions))
	for _, v := range versions {
		assert.True(t, strings.HasSuffix(v, ".sql"), v)
		body, err := migrationFiles.ReadFile("migrations/" + v)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(body)), v)
	}
}

func TestLedgerMigrationEnforcesOneSidedLines(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0001_ledger.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS journal_lines")
	assert.Contains(t, sql, "(debit = 0 AND credit > 0) OR (debit > 0 AND credit = 0)")
}
