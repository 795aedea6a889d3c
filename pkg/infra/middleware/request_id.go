// Package middleware provides the gin middleware chain of the HTTP server.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/rag-ask/pkg/infra/middleware/requestutil"
	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	"github.com/kart-io/rag-ask/pkg/utils/id"
)

// maxIncomingIDLen 超过该长度的客户端请求 ID 会被替换。
const maxIncomingIDLen = 128

// RequestIDWithOptions returns a middleware that assigns every request an ID.
// An incoming header value is reused; otherwise one is generated. The ID is
// set on the response header and stored in the request context.
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = requestutil.HeaderXRequestID
	}
	gen := id.NewGenerator(opts.GeneratorType)

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" || len(requestID) > maxIncomingIDLen {
			requestID = gen.Generate()
		}

		c.Header(header, requestID)
		c.Request = c.Request.WithContext(requestutil.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID assigned to c.
func GetRequestID(c *gin.Context) string {
	return requestutil.GetRequestID(c.Request.Context())
}
