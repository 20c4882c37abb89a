// Package shared holds helpers used across the measure pipeline codebase that
// do not belong to any domain package.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler and NewTestLogger to capture structured logs
//   - WriteMeasureFixtures to lay out a complete measure input directory
//
// Example usage:
//
//	func TestRun(t *testing.T) {
//	    dir := t.TempDir()
//	    codelist := testutil.WriteMeasureFixtures(t, dir)
//	    logger, logs := testutil.NewTestLogger(t)
//	    // run the pipeline against dir
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// This package should not contain business logic and must not import the
// domain packages, so every package can use it from its tests.
package shared
