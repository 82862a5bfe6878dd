package logutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", false)
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger.With().Str("req_id", "abc").Logger())
	log := GetOrDefault(ctx)
	log.Debug().Msg("hello")
	require.Contains(t, buf.String(), `"req_id":"abc"`)
	require.Contains(t, buf.String(), `"message":"hello"`)
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "", false)
	require.NoError(t, err)
	logger.Debug().Msg("hidden")
	require.Empty(t, buf.String())

	_, err = New(&buf, "not-a-level", false)
	require.Error(t, err)
}
