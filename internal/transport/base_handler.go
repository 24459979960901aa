package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/pkg/logger"
)

// Envelope is the uniform response shape every endpoint returns.
type Envelope struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Result     interface{} `json:"result"`
	Errors     interface{} `json:"errors,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

func statusLabel(statusCode int) string {
	switch statusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return "success"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_error"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return "error"
	default:
		return "unknown"
	}
}

func defaultMessage(statusCode int) string {
	switch statusCode {
	case http.StatusOK:
		return "Resource retrieved successfully"
	case http.StatusCreated:
		return "Resource created successfully"
	case http.StatusNoContent:
		return "No content"
	case http.StatusBadRequest:
		return "Bad request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusUnprocessableEntity:
		return "Validation failed"
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return http.StatusText(statusCode)
	}
}

// WriteResult wraps result data in the response envelope.
func (h *BaseHandler) WriteResult(w http.ResponseWriter, statusCode int, result interface{}) {
	h.writeEnvelope(w, Envelope{
		Status:     statusLabel(statusCode),
		StatusCode: statusCode,
		Message:    defaultMessage(statusCode),
		Result:     result,
	})
}

// WriteMessage is WriteResult with a custom human message.
func (h *BaseHandler) WriteMessage(w http.ResponseWriter, statusCode int, message string, result interface{}) {
	h.writeEnvelope(w, Envelope{
		Status:     statusLabel(statusCode),
		StatusCode: statusCode,
		Message:    message,
		Result:     result,
	})
}

// WriteError writes a bare error envelope with the given message.
func (h *BaseHandler) WriteError(w http.ResponseWriter, statusCode int, message string) {
	h.writeEnvelope(w, Envelope{
		Status:     statusLabel(statusCode),
		StatusCode: statusCode,
		Message:    message,
	})
}

// WriteAppError maps a service error onto the envelope. Expected 4xx
// outcomes are logged at warn; anything 5xx-class is an operator problem
// and logged at error with the cause. Internal details never reach the
// client.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		h.Logger.Error("unhandled error", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "code", appErr.Code, "status", appErr.StatusCode, "error", appErr.Error())
	} else {
		h.Logger.Warn("request rejected", "code", appErr.Code, "status", appErr.StatusCode, "message", appErr.Message)
	}

	env := Envelope{
		Status:     statusLabel(appErr.StatusCode),
		StatusCode: appErr.StatusCode,
		Message:    appErr.Message,
	}
	if details, ok := appErr.Details.(internal.ValidationErrors); ok {
		env.Errors = details.Errors
	}
	h.writeEnvelope(w, env)
}

func (h *BaseHandler) writeEnvelope(w http.ResponseWriter, env Envelope) {
	env.Timestamp = time.Now().Unix()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
