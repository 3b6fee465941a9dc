// log прокидывает request-scoped slog-логгер сквозь контекст запроса:
// мидлвар кладёт логгер с request_id, нижние слои достают его через From.
package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// Into возвращает контекст с привязанным логгером.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From возвращает логгер запроса; вне запроса — slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}
