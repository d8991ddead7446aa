package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntoFrom_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := Into(context.Background(), lg)
	require.Same(t, lg, From(ctx))
}

func TestFrom_EmptyContext_Default(t *testing.T) {
	t.Parallel()

	require.Same(t, slog.Default(), From(context.Background()))
}

func TestWith_AddsAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := With(Into(context.Background(), lg), "request_id", "abc-123")
	From(ctx).Info("event")

	require.Contains(t, buf.String(), "request_id=abc-123")
}
