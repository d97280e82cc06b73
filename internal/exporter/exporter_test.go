package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesdash/internal/config"
	"salesdash/pkg/contracts/domain"
)

func sampleReport() *Report {
	return &Report{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		StateCodes:  []string{"SP"},
		Metric:      domain.StateMetricRevenue,
		KPIs:        domain.KPIs{TotalRevenue: 150, OrderCount: 2, CustomerCount: 2, RevenueMode: domain.RevenueModeRow},
		Monthly: []domain.MonthlyRevenue{
			{Month: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Revenue: 100},
			{Month: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Revenue: 50},
		},
		Categories: []domain.CategoryCount{{Category: "Beleza Saude", Count: 1}},
		StateStats: []domain.StateStats{{State: "SP", Revenue: 150, OrderCount: 2, AverageTicket: 75}},
		Funnel:     domain.Funnel{Created: 2, Paid: 2, Delivered: 2},
		Reviews:    []domain.ReviewBucket{{Score: 4, Count: 1}, {Score: 5, Count: 1}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"XLSX", FormatXLSX, false},
		{"", FormatCSV, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportTables(t *testing.T) {
	tables := sampleReport().Tables()

	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
		for _, row := range tbl.Rows {
			assert.Len(t, row, len(tbl.Headers), tbl.Name)
		}
	}
	assert.Equal(t, []string{"Filter", "KPIs", "Monthly revenue", "Top categories", "States", "Funnel", "Reviews"}, names)

	withForecast := sampleReport()
	withForecast.Forecast = []domain.ForecastPoint{{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Estimate: 10, Lower: 5, Upper: 15}}
	tables = withForecast.Tables()
	assert.Equal(t, "Forecast", tables[len(tables)-1].Name)
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatCSV, sampleReport()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}), "starts with a BOM")

	reader := csv.NewReader(bytes.NewReader(data[3:]))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Filter"}, records[0])
	assert.Contains(t, records, []string{"Total revenue", "Orders", "Unique customers"})
	assert.Contains(t, records, []string{"150.00", "2", "2"})
	assert.Contains(t, records, []string{"2024-01", "100.00"})
	assert.Contains(t, records, []string{"SP", "150.00", "2", "75.00"})
	assert.Contains(t, records, []string{"Orders delivered", "2"})
	assert.Equal(t, []string{"2026-03-01T12:00:00Z", "2024-01-01", "2024-02-29", "SP", "row", "revenue"}, records[2])
}

func TestEncodeXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatXLSX, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Filter", "KPIs", "Monthly revenue", "Top categories", "States", "Funnel", "Reviews"}, f.GetSheetList())

	rows, err := f.GetRows("States")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"State", "Revenue", "Orders", "Average ticket"}, rows[0])
	assert.Equal(t, "SP", rows[1][0])
	assert.Equal(t, "75", rows[1][3])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a_b", sheetName("a/b"))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), maxSheetName)
}

func TestWriterWriteReport(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(&config.Paths{ExportDir: filepath.Join(dir, "exports")}, nil)

	path, err := w.WriteReport("overview", FormatCSV, sampleReport())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "exports", "overview_20260301_120000.csv"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
