package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	"salesdash/internal/shared/testutil"
)

func newTestCSVSource(t *testing.T, dir string) *CSVSource {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewCSVSource(dir, config.DefaultTableFiles, logger)
}

func TestCSVSourceReadTable(t *testing.T) {
	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
	src := newTestCSVSource(t, dir)
	ctx := context.Background()

	records, err := src.ReadTable(ctx, config.TableOrders)
	require.NoError(t, err)

	assert.Equal(t, config.TableOrders, records.Table)
	assert.Len(t, records.Rows, 3)

	idx, err := records.Require("order_id", "order_purchase_timestamp")
	require.NoError(t, err)
	assert.Equal(t, "o1", Value(records.Rows[0], idx[0]))
	assert.Equal(t, "2024-01-05 10:00:00", Value(records.Rows[0], idx[1]))
}

func TestCSVSourceMissingFile(t *testing.T) {
	fixtures := testutil.NewOlistFixtures(t.TempDir()).Add(testutil.ThreeOrderScenario()...)
	require.NoError(t, fixtures.WriteCSV())
	require.NoError(t, fixtures.RemoveTable(config.TablePayments))

	src := newTestCSVSource(t, fixtures.TestDataDir)
	ctx := context.Background()

	_, err := src.ReadTable(ctx, config.TablePayments)
	require.Error(t, err)
	assert.True(t, IsMissingInput(err))
	assert.Contains(t, err.Error(), config.DefaultTableFiles[config.TablePayments])

	_, err = src.Fingerprint(ctx)
	assert.True(t, IsMissingInput(err))
}

func TestCSVSourceFingerprint(t *testing.T) {
	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
	src := newTestCSVSource(t, dir)
	ctx := context.Background()

	first, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	again, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again, "unchanged files must hash identically")

	path := filepath.Join(dir, config.DefaultTableFiles[config.TableProducts])
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("p9,esporte_lazer,10,100\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	changed, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestCSVSourceCancelledContext(t *testing.T) {
	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
	src := newTestCSVSource(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.ReadTable(ctx, config.TableOrders)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecords(t *testing.T) {
	records := NewRecords("orders", []string{"\ufeffOrder_ID ", "customer_id", "order_id"})
	records.Rows = [][]string{{" o1 ", "c1"}}

	tests := []struct {
		name   string
		column string
		want   int
	}{
		{"bom and case are ignored", "order_id", 0},
		{"exact match", "customer_id", 1},
		{"unknown column", "price", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, records.Col(tt.column))
		})
	}

	assert.Equal(t, "o1", Value(records.Rows[0], 0))
	assert.Equal(t, "", Value(records.Rows[0], 2), "short rows read as empty")
	assert.Equal(t, "", Value(records.Rows[0], -1))

	_, err := records.Require("order_id", "price")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
}

func TestSQLTableNames(t *testing.T) {
	names := sqlTableNames(config.DefaultTableFiles)
	assert.Equal(t, "olist_orders", names[config.TableOrders])
	assert.Equal(t, "olist_order_payments", names[config.TablePayments])
	assert.Equal(t, "product_category_name_translation", names[config.TableCategoryTranslation])
}
