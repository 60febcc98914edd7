package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Components receive this via
// constructor injection rather than reaching for the global default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
