package exporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// EncodeXLSX writes one worksheet per table
func EncodeXLSX(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	const defaultSheet = "Sheet1"
	for i, t := range tables {
		name := sheetName(t.Name)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		headers := make([]any, len(t.Headers))
		for j, h := range t.Headers {
			headers[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &headers); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(max(len(t.Headers), 1), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", last, header); err != nil {
			return err
		}

		for j, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			values := make([]any, len(row))
			copy(values, row)
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", j, name, err)
			}
			for k, v := range row {
				if _, ok := v.(time.Time); !ok {
					continue
				}
				c, _ := excelize.CoordinatesToCellName(k+1, j+2)
				if err := f.SetCellStyle(name, c, c, dateStyle); err != nil {
					return err
				}
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetName removes characters Excel rejects and truncates to 31 runes
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
