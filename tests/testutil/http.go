package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Envelope is the decoded API response wrapper with data left raw
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

// Do sends a request to engine. Non-nil bodies are sent as JSON; a string
// body is sent verbatim.
func Do(t testing.TB, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// DecodeEnvelope parses the response wrapper
func DecodeEnvelope(t testing.TB, w *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse response: %s", w.Body.String())
	return env
}

// DataAs decodes the envelope's data into T
func DataAs[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	env := DecodeEnvelope(t, w)
	require.True(t, env.Success, "Expected success response, got %s", w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &out), "Failed to parse data")
	return out
}

// IsNullData reports whether the envelope carries an explicit null data
func (e Envelope) IsNullData() bool {
	return bytes.Equal(bytes.TrimSpace(e.Data), []byte("null"))
}
