// Package logging provides the leveled logger used across openroom.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to DEBUG with DEBUG=true.
//
// Subsystems that log often (decode, gpu, preview) take a component logger
// from For, which tags every line with the component name:
//
//	var log = logging.For("gpu")
//	log.Warn("adapter lost: %v", err)
//	// 2026/10/17 10:00:00 [WARN] [gpu] adapter lost: ...
package logging
