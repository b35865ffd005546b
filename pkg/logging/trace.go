package logging

import "log/slog"

// EnableTrace gates the cache and queue hot-path logs, which are too
// chatty even for DEBUG. Init sets it when the server log level is TRACE.
var EnableTrace = false

// Trace logs at DEBUG level, skipped cheaply when tracing is off.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}
