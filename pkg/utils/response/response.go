// Package response defines the unified error envelope and the gin writers
// used by every handler.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/rag-ask/pkg/utils/errors"
)

// HeaderRequestID is read back from the response headers so error bodies can
// carry the id assigned by the request-id middleware.
const HeaderRequestID = "X-Request-ID"

// Response is the unified envelope.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`

	httpStatus int
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return &Response{Message: "success", httpStatus: http.StatusOK}
	}
	return &Response{
		Code:       e.Code,
		Message:    e.MessageEN,
		httpStatus: e.HTTPStatus(),
	}
}

// HTTPStatus returns the status the envelope is written with.
func (r *Response) HTTPStatus() int {
	if r.httpStatus != 0 {
		return r.httpStatus
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func prepare(c *gin.Context, r *Response) *Response {
	r.RequestID = c.Writer.Header().Get(HeaderRequestID)
	r.Timestamp = time.Now().UnixMilli()
	return r
}

// Fail writes e as an error envelope and aborts the chain.
func Fail(c *gin.Context, e *errors.Errno) {
	resp := prepare(c, Err(e))
	c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
}

// JSON writes a bare payload without the envelope.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}
