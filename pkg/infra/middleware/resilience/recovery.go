// Package resilience contains the middleware that keeps a bad request from
// taking the server down: panic recovery and request body limits.
package resilience

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	"github.com/kart-io/rag-ask/pkg/utils/errors"
	"github.com/kart-io/rag-ask/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
// 参数：
//   - ctx: 请求上下文
//   - err: panic 值
//   - stack: 堆栈跟踪信息
type PanicHandler func(ctx *gin.Context, err interface{}, stack []byte)

// RecoveryWithOptions 返回 Recovery 中间件。
// panic 会被记录为错误日志，客户端收到 500 错误信封，消息中不含堆栈。
//
// onPanic 可选，用于额外的告警或统计，为 nil 时仅记录日志。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				fields := []interface{}{
					"panic", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				}
				if opts.EnableStackTrace {
					fields = append(fields, "stack_trace", string(stack))
				}
				logger.Errorw("panic recovered", fields...)

				if onPanic != nil {
					onPanic(c, r, stack)
				}

				response.Fail(c, errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
