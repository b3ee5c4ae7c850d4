package telemetry

import (
	"fmt"
	"log/slog"
)

// SlogAPI implements API using the log/slog package.
//
// Params that are themselves slog.Attr values are passed through as-is, everything else is
// numbered as `params.<n>`.
type SlogAPI struct {
	// RunID is attached to every record when set.
	RunID string
}

func (s SlogAPI) formatParams(out *[]any, params []any) {
	if s.RunID != "" {
		*out = append(*out, "run_id", s.RunID)
	}
	for i, p := range params {
		if attr, ok := p.(slog.Attr); ok {
			*out = append(*out, attr)
			continue
		}
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportInfo(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Info(message, remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	pairs := []any{"id", id, "n", count}
	if s.RunID != "" {
		pairs = append(pairs, "run_id", s.RunID)
	}
	slog.Info("count", pairs...)
}
