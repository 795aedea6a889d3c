package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Question answering errors.
var (
	// ErrAskInvalidQuestion 请求体无法解析或缺少 question 字段。
	ErrAskInvalidQuestion = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), http.StatusUnprocessableEntity, codes.InvalidArgument, "Invalid question", "问题无效"))

	// ErrAskUnexpected 生成回答时发生的非上游错误。
	ErrAskUnexpected = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Unexpected error", "意外错误"))

	// ErrAskIndexFailed 检索阶段失败。
	ErrAskIndexFailed = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Knowledge index failed", "知识索引失败"))

	// ErrAskUpstream 推理端点返回非 2xx；HTTP 状态码由调用方按上游状态覆盖。
	ErrAskUpstream = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Inference endpoint failed", "推理服务调用失败"))
)
