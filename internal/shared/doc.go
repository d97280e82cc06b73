// Package shared holds code used across packages that belongs to no single
// layer.
//
// The testutil subpackage writes Olist-shaped CSV fixtures and region
// boundary files into temporary directories and captures slog output for
// assertions:
//
//	dir := testutil.WriteOlistCSV(t, testutil.ThreeOrderScenario()...)
//	testutil.WriteBoundaries(t, dir, "br_states.json")
//	logger, handler := testutil.NewTestLogger(t)
package shared
