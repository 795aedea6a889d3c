package resilience

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	"github.com/kart-io/rag-ask/pkg/utils/errors"
	"github.com/kart-io/rag-ask/pkg/utils/response"
)

// BodyLimitWithOptions rejects requests whose body exceeds opts.MaxSize.
// A declared Content-Length over the limit is answered with 413 right away;
// bodies of unknown length are capped with http.MaxBytesReader so the
// decoder fails once the limit is crossed.
func BodyLimitWithOptions(opts mwopts.BodyLimitOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok || opts.MaxSize <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > opts.MaxSize {
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, opts.MaxSize)
		}
		c.Next()
	}
}
