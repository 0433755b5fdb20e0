/*
Package filesystem provides the file access used by the decode chain and the
HTTP handlers: reads and stats that retry on NFS stale file handles, and
resolution of request paths against an optional library root.

# Retry Behavior

Only ESTALE (stale file handle) triggers a retry. Every other error is
returned on the first attempt. The defaults are:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Backoff doubles after each failed attempt up to MaxBackoff.

# Usage

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

	full, err := filesystem.Resolve(config.LibraryDir, r.URL.Query().Get("path"))
	if errors.Is(err, filesystem.ErrOutsideRoot) {
	    // reject the request
	}

# Metrics

Retry outcomes are reported through an [Observer] installed with
[SetObserver]; the metrics package provides the Prometheus implementation.
With no observer installed nothing is recorded.
*/
package filesystem
