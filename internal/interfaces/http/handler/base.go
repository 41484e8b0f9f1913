package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the ID assigned by the RequestID middleware, falling
// back to the client header when the middleware is not installed.
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleBindError answers a request whose body or query could not be bound
func (h *BaseHandler) HandleBindError(c *gin.Context, err error) {
	var (
		validationErrs validator.ValidationErrors
		tooLarge       *http.MaxBytesError
		syntaxErr      *json.SyntaxError
		typeErr        *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &validationErrs):
		middleware.HandleValidationError(c, validationErrs)
	case errors.As(err, &tooLarge):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed JSON body")
	default:
		h.BadRequest(c, "Invalid request: "+err.Error())
	}
}

// HandleError converts an error into an HTTP response. Domain errors keep
// their message; validation errors add a per-field detail. Storage causes
// are logged, never returned.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		logger.GetGinLogger(c).Error("Unexpected handler error", zap.Error(err))
		h.InternalError(c, "An unexpected error occurred")
		return
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	switch domainErr.Code {
	case shared.CodeValidation:
		var details []dto.ValidationDetail
		if domainErr.Field != "" {
			details = []dto.ValidationDetail{{Field: domainErr.Field, Message: domainErr.Message}}
		}
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(domainErr.Message, requestID, details))
	case shared.CodeStorage:
		logger.GetGinLogger(c).Error("Storage failure", zap.Error(err))
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
	default:
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
	}
}
