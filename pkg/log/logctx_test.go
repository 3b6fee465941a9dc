package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntoFrom_RoundTrip(t *testing.T) {
	logger := slog.Default().With(slog.String("request_id", "rid-1"))

	ctx := Into(context.Background(), logger)
	require.Same(t, logger, From(ctx))
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	require.Same(t, slog.Default(), From(context.Background()))
}
