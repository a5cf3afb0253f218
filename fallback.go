package mgs

import (
	"context"

	"github.com/zoobzio/capitan"
)

type reporterKey struct{}

// reporter receives field fallbacks from the watcher a producer is running.
type reporter interface {
	reportFallback(ctx context.Context, field string, err error)
}

// Fallback returns v when err is nil. Otherwise it records that field fell
// back, attributing it to the producer running under ctx when there is one,
// and returns def. Sources use it so a failed read or decode degrades a
// single field instead of the whole snapshot.
//
//	data.Percentage = mgs.Fallback(ctx, "percentage", pct, err, 0)
func Fallback[V any](ctx context.Context, field string, v V, err error, def V) V {
	if err == nil {
		return v
	}
	if r, ok := ctx.Value(reporterKey{}).(reporter); ok {
		r.reportFallback(ctx, field, err)
		return def
	}
	capitan.Emit(ctx, FieldFallback,
		KeyField.Field(field),
		KeyError.Field(err.Error()),
	)
	return def
}

// CommandError reports a failed write-back command. The caller keeps its
// last known state; nothing is retried.
func CommandError(ctx context.Context, command string, err error) {
	if err == nil {
		return
	}
	capitan.Emit(ctx, CommandFailed,
		KeyCommand.Field(command),
		KeyError.Field(err.Error()),
	)
}
