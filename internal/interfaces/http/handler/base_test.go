package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from context",
			setup: func(c *gin.Context) {
				c.Set(logger.RequestIDKey, "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set(logger.RequestIDKey, "ctx-id")
				c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			tt.setup(c)

			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Success(c, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestBaseHandlerCreated(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Created(c, map[string]int{"id": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "validation error",
			err:            shared.NewValidationError("email", "Valid email is required"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrCodeValidation,
			expectedMsg:    "Valid email is required",
		},
		{
			name:           "not found error",
			err:            shared.NewNotFoundError("customer", int64(999999)),
			expectedStatus: http.StatusNotFound,
			expectedCode:   dto.ErrCodeNotFound,
			expectedMsg:    "customer with id 999999 not found",
		},
		{
			name:           "storage error hides the cause",
			err:            shared.NewStorageError("list customers", errors.New("pq: password authentication failed")),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrCodeStorage,
			expectedMsg:    "failed to list customers",
		},
		{
			name:           "unknown error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrCodeInternal,
			expectedMsg:    "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Set(logger.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.Equal(t, tt.expectedMsg, resp.Error.Message)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}

	t.Run("validation error carries the field", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)

		h.HandleError(c, shared.NewValidationError("query", "Search query is required"))

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []dto.ValidationDetail{{Field: "query", Message: "Search query is required"}}, resp.Error.Details)
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		h := &BaseHandler{}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		h.HandleError(c, nil)

		assert.Empty(t, w.Body.Bytes())
	})
}
