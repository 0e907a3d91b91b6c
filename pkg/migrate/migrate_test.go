package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	versions, err := ValidateFS(Embedded())
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	require.Equal(t, "20260105090000", versions[0])
}

func TestValidateDirMatchesEmbedded(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	good := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	tests := map[string]fstest.MapFS{
		"bad name":     {"2026_create.sql": {Data: []byte(good)}},
		"missing down": {"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;")}},
		"swapped":      {"20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
		"duplicate": {
			"20260101000000_a.sql": {Data: []byte(good)},
			"20260101000000_b.sql": {Data: []byte(good)},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateFS(fsys)
			require.Error(t, err)
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := createAt(dir, "Add Tracking  Number!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260304050607_add_tracking_number.sql"), path)

	_, err = createAt(dir, "add tracking number", now)
	require.Error(t, err)

	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "!!!", now)
	require.Error(t, err)
}

func TestShouldAutoRun(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = config.AppEnvDev
	require.False(t, shouldAutoRun(cfg))

	cfg.FeatureFlags.AutoMigrate = true
	require.True(t, shouldAutoRun(cfg))

	cfg.App.Env = config.AppEnvProd
	require.False(t, shouldAutoRun(cfg))
	require.False(t, shouldAutoRun(nil))
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260105090300")
	require.NoError(t, err)
	require.EqualValues(t, 20260105090300, v)

	_, err = ParseVersion("2026")
	require.Error(t, err)
	_, err = ParseVersion("2026010509030x")
	require.Error(t, err)
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func requireContainsAll(t *testing.T, content string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationConstraints(t *testing.T) {
	requireContainsAll(t, readMigration(t, "create_inventory_tables"),
		"CREATE TABLE IF NOT EXISTS inventories",
		"CONSTRAINT chk_inventories_quantity CHECK (quantity >= 0)",
		"ux_inventories_product_store ON inventories (product_id, store_id)",
		"CREATE TABLE IF NOT EXISTS stock_journals",
		"BEFORE UPDATE OR DELETE ON stock_journals",
		"DROP TABLE IF EXISTS inventories",
	)
}

func TestOrdersMigrationConstraints(t *testing.T) {
	requireContainsAll(t, readMigration(t, "create_orders"),
		"ux_orders_order_number ON orders (order_number)",
		"CHECK (total_amount = subtotal_amount + shipping_cost - discount_amount)",
		"'WAITING_PAYMENT_CONFIRMATION'",
		"status_history        jsonb NOT NULL",
		"CREATE TABLE IF NOT EXISTS payment_transactions",
		"raw_payload             jsonb NOT NULL",
		"DROP TABLE IF EXISTS orders",
	)
}

func TestCatalogMigrationUsesGeography(t *testing.T) {
	requireContainsAll(t, readMigration(t, "create_catalog_tables"),
		"CREATE EXTENSION IF NOT EXISTS postgis",
		"location    geography(Point, 4326) NOT NULL",
		"USING gist (location)",
	)
}

func TestVoucherAndOutboxMigrations(t *testing.T) {
	requireContainsAll(t, readMigration(t, "create_vouchers"),
		"ux_vouchers_code ON vouchers (code)",
		"value_type           text NOT NULL CHECK (value_type IN ('PERCENTAGE', 'FIXED'))",
	)
	requireContainsAll(t, readMigration(t, "create_outbox"),
		"WHERE published_at IS NULL",
		"ux_outbox_dlq_event_id ON outbox_dlq (event_id)",
	)
}
