// Package integration holds end-to-end tests that run the full application
// against fixture inputs and read every configured sink back.
package integration
