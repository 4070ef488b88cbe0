package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_orders")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT orders_tx_ref_unique UNIQUE (tx_ref)",
		"CHECK (status IN ('DRAFT', 'PENDING', 'PAID', 'FAILED'))",
		"'NOT_STARTED', 'ENRICHING', 'RENDERING', 'DONE', 'RENDER_FAILED'",
		"CHECK (status <> 'PAID' OR paid_at IS NOT NULL)",
		"fulfillment_claimed_at timestamptz NULL",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestFulfillmentAttemptsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_fulfillment_attempts")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS fulfillment_attempts",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"UNIQUE (order_id, attempt)",
		"'webhook', 'reconcile', 'retry_job', 'operator'",
		"DROP TABLE IF EXISTS fulfillment_attempts",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationCreatesBothTables(t *testing.T) {
	content := readMigration(t, "create_outbox")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"WHERE published_at IS NULL",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"DROP TABLE IF EXISTS outbox_dlq",
		"DROP TABLE IF EXISTS outbox_events",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateSQLRejectsBrokenAnnotations(t *testing.T) {
	cases := map[string]string{
		"missing up":   "-- +goose Down\nDROP TABLE x;\n",
		"missing down": "-- +goose Up\nCREATE TABLE x ();\n",
		"down first":   "-- +goose Down\n-- +goose Up\n",
		"unterminated": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"stray end":    "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
	}
	for name, sql := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, validateSQL("x.sql", sql))
		})
	}
}

func TestValidateDirRejectsBadNamesAndDuplicates(t *testing.T) {
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.sql"), body, 0o644))
	require.ErrorContains(t, ValidateDir(dir), "invalid migration filename")

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_b.sql"), body, 0o644))
	require.ErrorContains(t, ValidateDir(dir), "duplicate migration version")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "Add Order Index!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260304100000_add_order_index.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = createSQLMigration(dir, "Add Order Index!", now)
	require.ErrorContains(t, err, "already exists")

	_, err = createSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}

func TestEmbeddedSourceMatchesDir(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)

	embeddedNames, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)

	require.Len(t, embeddedNames, len(onDisk))
	for _, p := range onDisk {
		require.Contains(t, embeddedNames, filepath.Base(p))
	}
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := Source(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.sql")
	require.NoError(t, os.WriteFile(file, []byte("-- +goose Up"), 0o644))
	_, err = Source(file)
	require.Error(t, err)
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := Run(context.Background(), nil, nil, "redo", nil)
	require.Error(t, err)
}
