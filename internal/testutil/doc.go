// Package testutil provides shared test fixtures: a running worker, a
// recording binder and canonical golden-file assertions.
package testutil
