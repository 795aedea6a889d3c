// Package handler provides HTTP handlers for the question answering service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/internal/rag/biz"
	"github.com/kart-io/rag-ask/pkg/infra/middleware/requestutil"
	apierrors "github.com/kart-io/rag-ask/pkg/utils/errors"
	"github.com/kart-io/rag-ask/pkg/utils/httpclient"
	"github.com/kart-io/rag-ask/pkg/utils/response"
)

// RAGHandler handles question answering HTTP requests.
type RAGHandler struct {
	service *biz.Service
	banner  string
}

// NewRAGHandler creates a new RAGHandler. banner is returned by the health endpoint.
func NewRAGHandler(service *biz.Service, banner string) *RAGHandler {
	return &RAGHandler{
		service: service,
		banner:  banner,
	}
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question" binding:"required,notblank"`
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Ask answers a question from the knowledge base.
func (h *RAGHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, apierrors.ErrRequestTooLarge.WithCause(err))
			return
		}
		response.Fail(c, apierrors.ErrAskInvalidQuestion.WithCause(err).WithMessage(invalidQuestionMessage(err)))
		return
	}

	result, err := h.service.Ask(c.Request.Context(), req.Question)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.JSON(c, http.StatusOK, AskResponse{Answer: result.Answer})
}

// Health reports that the service is up.
func (h *RAGHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, HealthResponse{
		Status:  "online",
		Message: h.banner,
	})
}

// fail 将服务错误映射为 HTTP 错误信封：
// 空问题 422；生成阶段上游非 2xx 透传状态码与响应体；检索失败与其他错误 500。
func (h *RAGHandler) fail(c *gin.Context, err error) {
	e := askErrno(err)
	_ = c.Error(err)

	fields := []interface{}{
		"code", e.Code,
		"status", e.HTTPStatus(),
		"error", err.Error(),
		"request_id", requestutil.GetRequestID(c.Request.Context()),
	}
	if apierrors.IsServerError(e.Code) {
		logger.Errorw("Failed to answer question", fields...)
	} else {
		logger.Warnw("Rejected question", fields...)
	}

	response.Fail(c, e)
}

func askErrno(err error) *apierrors.Errno {
	if errors.Is(err, biz.ErrEmptyQuestion) {
		return apierrors.ErrAskInvalidQuestion.WithCause(err).WithMessage(err.Error())
	}

	// 嵌入端点的非 2xx 不透传，按意外错误处理
	if se, ok := httpclient.AsStatusError(err); ok && errors.Is(err, biz.ErrGeneration) {
		return apierrors.ErrAskUpstream.
			WithCause(err).
			WithHTTPStatus(se.StatusCode).
			WithMessage(se.Body)
	}

	if errors.Is(err, biz.ErrKnowledgeIndex) {
		return apierrors.ErrAskIndexFailed.WithCause(err).WithMessage(err.Error())
	}

	return apierrors.ErrAskUnexpected.WithCause(err).WithMessage("unexpected error: " + err.Error())
}

func invalidQuestionMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return "field 'question' is required"
	}
	return "invalid request body: " + err.Error()
}
