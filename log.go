package gateclient

import "github.com/arcbridge/gateclient/internal/gwlog"

// Logger is the logging interface the Client and GroupLimits accept. It is
// a type alias for the shared slog-based facade so importers never need
// to reach into an internal package themselves.
type Logger = gwlog.Logger

func defaultLogger() *Logger {
	return gwlog.Default()
}
