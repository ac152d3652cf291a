package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every endpoint returns.
// StatusCode always equals the HTTP status written with it.
type APIResponse[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	Errors     any    `json:"errors,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

// Success writes a success envelope and returns it.
func Success[T any](c *gin.Context, status int, data T, message string) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	resp := APIResponse[T]{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
		RequestID:  c.GetString("request_id"),
	}
	c.JSON(status, resp)
	return resp
}

// Error writes an error envelope, aborts the handler chain and returns the envelope.
func Error(c *gin.Context, status int, message string, details any) APIResponse[any] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := APIResponse[any]{
		StatusCode: status,
		Message:    message,
		Success:    false,
		Errors:     details,
		RequestID:  c.GetString("request_id"),
	}
	c.AbortWithStatusJSON(status, resp)
	return resp
}
