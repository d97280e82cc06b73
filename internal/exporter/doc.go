// Package exporter writes dashboard views as CSV or XLSX.
//
// A Report holds every view computed for one filter. Tables flattens it into
// named tables which the encoders render:
//
//	EncodeCSV writes all tables into one CSV stream, each table preceded by a
//	title row and separated by a blank line. A UTF-8 BOM is written first so
//	spreadsheet applications detect the encoding.
//
//	EncodeXLSX writes one worksheet per table using excelize.
//
// Writer stores reports under the configured export directory.
//
// Example usage:
//
//	w := exporter.NewWriter(paths)
//	path, err := w.WriteReport("overview", exporter.FormatXLSX, report)
package exporter
