package httpserver

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"
)

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	handler := WithLogging(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logutil.GetOrDefault(r.Context())
		log.Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	apitest.Handler(handler).
		Get("/brew").
		Expect(t).
		Status(http.StatusTeapot).
		HeaderPresent("X-Request-Id").
		End()

	out := buf.String()
	require.Contains(t, out, `"message":"inside handler"`)
	require.Contains(t, out, `"message":"Request handled"`)
	require.Contains(t, out, `"status":418`)
	require.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"req_id"`)))
}
