package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customerJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestNewEngine_RoundTrip(t *testing.T) {
	engine := NewEngine(t, NewSQLiteDB(t))

	w := Do(t, engine, http.MethodPost, "/api/v1/customers", map[string]string{
		"name": "Alice", "email": "alice@example.com", "phone": "555", "address": "1 Main St",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := DataAs[customerJSON](t, w)
	assert.Positive(t, created.ID)

	w = Do(t, engine, http.MethodGet, "/api/v1/customers", nil)
	all := DataAs[[]customerJSON](t, w)
	require.Len(t, all, 1)
	assert.Equal(t, "Alice", all[0].Name)
}

func TestEnvelope_NullData(t *testing.T) {
	engine := NewEngine(t, NewSQLiteDB(t))

	w := Do(t, engine, http.MethodGet, "/api/v1/customers/42", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := DecodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.True(t, env.IsNullData())
}

func TestDo_RawBody(t *testing.T) {
	engine := NewEngine(t, NewSQLiteDB(t))

	w := Do(t, engine, http.MethodPost, "/api/v1/customers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := DecodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ERR_INVALID_JSON", env.Error.Code)
}
