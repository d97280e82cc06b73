package source

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	"salesdash/internal/shared/testutil"
)

// newSQLiteFixture loads the fixture tables into a fresh SQLite database
// and returns its DSN.
func newSQLiteFixture(t *testing.T, orders ...testutil.OrderFixture) string {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "olist.db")
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	names := sqlTableNames(config.DefaultTableFiles)
	for table, data := range testutil.NewOlistFixtures("").Add(orders...).Tables() {
		name := names[table]
		cols := make([]string, len(data.Header))
		marks := make([]string, len(data.Header))
		for i, h := range data.Header {
			cols[i] = fmt.Sprintf("%q TEXT", h)
			marks[i] = "?"
		}
		_, err := db.Exec(fmt.Sprintf("CREATE TABLE %q (%s)", name, strings.Join(cols, ", ")))
		require.NoError(t, err)

		insert := fmt.Sprintf("INSERT INTO %q VALUES (%s)", name, strings.Join(marks, ", "))
		for _, row := range data.Rows {
			args := make([]any, len(row))
			for i, v := range row {
				if v == "" {
					args[i] = nil
				} else {
					args[i] = v
				}
			}
			_, err := db.Exec(insert, args...)
			require.NoError(t, err)
		}
	}
	return dsn
}

func TestSQLiteSource(t *testing.T) {
	dsn := newSQLiteFixture(t, testutil.ThreeOrderScenario()...)
	logger, _ := testutil.NewTestLogger(t)
	ctx := context.Background()

	src, err := OpenSQL(ctx, config.SourceSQLite, dsn, sqlTableNames(config.DefaultTableFiles), logger)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, config.SourceSQLite, src.Kind())

	t.Run("reads rows with nulls as empty strings", func(t *testing.T) {
		records, err := src.ReadTable(ctx, config.TableOrders)
		require.NoError(t, err)
		require.Len(t, records.Rows, 3)

		carrier := records.Col("order_delivered_carrier_date")
		require.GreaterOrEqual(t, carrier, 0)
		assert.Equal(t, "", Value(records.Rows[0], carrier))
	})

	t.Run("fingerprint tracks row counts", func(t *testing.T) {
		first, err := src.Fingerprint(ctx)
		require.NoError(t, err)

		db, err := sql.Open("sqlite", dsn)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO "olist_products" VALUES ('p9', 'esporte_lazer', '1', '1')`)
		require.NoError(t, err)
		require.NoError(t, db.Close())

		second, err := src.Fingerprint(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("fingerprint tracks in-place edits", func(t *testing.T) {
		first, err := src.Fingerprint(ctx)
		require.NoError(t, err)
		again, err := src.Fingerprint(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)

		db, err := sql.Open("sqlite", dsn)
		require.NoError(t, err)
		res, err := db.Exec(`UPDATE "olist_order_payments" SET "payment_value" = '99.00' WHERE "order_id" = 'o1'`)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		require.NoError(t, db.Close())

		second, err := src.Fingerprint(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("missing table", func(t *testing.T) {
		db, err := sql.Open("sqlite", dsn)
		require.NoError(t, err)
		_, err = db.Exec(`DROP TABLE "olist_order_reviews"`)
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = src.ReadTable(ctx, config.TableOrderReviews)
		require.Error(t, err)
		assert.True(t, IsMissingInput(err))
	})
}

func TestOpenUnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Kind = "oracle"
	paths := cfg.ResolvePathsFrom(t.TempDir())

	_, err := Open(context.Background(), cfg, paths, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "SP", "SP"},
		{"int32", int32(5), "5"},
		{"int64", int64(42), "42"},
		{"float", 99.9, "99.9"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}
