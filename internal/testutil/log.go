package testutil

import (
	"log/slog"
	"strings"
)

type logWriter struct{ t TestingT }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Logger returns a debug-level slog.Logger that writes through t.Logf, so
// output only shows for failing or verbose tests.
func Logger(t TestingT) *slog.Logger {
	return slog.New(slog.NewTextHandler(logWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
