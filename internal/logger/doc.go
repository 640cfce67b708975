// Package logger provides a small levelled logger shared by the server,
// the thread pool and the admin surface.
//
// Every line carries a timestamp, a level and an optional scope:
//
//	[2026-10-19 10:00:00.000] [INFO] [worker-2] job finished in 3ms
//
// # Basic Usage
//
//	logger.Info("", "listening on %s", addr)
//	logger.Warn("127.0.0.1:53122", "read request: %v", err)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-1", "waiting for job")
//
// # Levels
//
// Messages below the configured level are dropped. ParseLevel accepts the
// strings used in configuration files ("debug", "info", "warn", "error").
//
// All methods are safe for concurrent use.
package logger
