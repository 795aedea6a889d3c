package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	code := MakeCode(ServiceRAG, CategoryRequest, 1)
	assert.Equal(t, 2001001, code)
	assert.Equal(t, CategoryRequest, GetCategory(code))
	assert.False(t, IsServerError(code))
}

func TestIsServerError(t *testing.T) {
	tests := []struct {
		name string
		e    *Errno
		want bool
	}{
		{name: "invalid question", e: ErrAskInvalidQuestion, want: false},
		{name: "request too large", e: ErrRequestTooLarge, want: false},
		{name: "route not found", e: ErrRouteNotFound, want: false},
		{name: "unexpected", e: ErrAskUnexpected, want: true},
		{name: "index failed", e: ErrAskIndexFailed, want: true},
		{name: "upstream", e: ErrAskUpstream, want: true},
		{name: "panic", e: ErrPanic, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsServerError(tt.e.Code))
		})
	}
}

func TestErrno_CopiesDoNotMutateRegistered(t *testing.T) {
	upstream := ErrAskUpstream.WithHTTPStatus(http.StatusServiceUnavailable).WithMessage("model overloaded")

	assert.Equal(t, http.StatusServiceUnavailable, upstream.HTTPStatus())
	assert.Equal(t, "model overloaded", upstream.MessageEN)
	assert.Equal(t, http.StatusBadGateway, ErrAskUpstream.HTTPStatus())
	assert.Equal(t, "Inference endpoint failed", ErrAskUpstream.MessageEN)
	assert.True(t, stderrors.Is(upstream, ErrAskUpstream))
}

func TestErrno_WithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrAskUnexpected.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, codes.Internal, err.GRPCStatus())
}

func TestErrno_AsThroughWrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOK   bool
	}{
		{name: "errno", err: ErrAskInvalidQuestion, wantCode: ErrAskInvalidQuestion.Code, wantOK: true},
		{name: "wrapped errno", err: fmt.Errorf("handler: %w", ErrAskIndexFailed), wantCode: ErrAskIndexFailed.Code, wantOK: true},
		{name: "plain error", err: stderrors.New("boom"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *Errno
			ok := stderrors.As(tt.err, &e)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantCode, e.Code)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrAskUpstream.Code)
	require.True(t, ok)
	assert.Same(t, ErrAskUpstream, e)

	_, ok = Lookup(MakeCode(ServiceRAG, CategoryInternal, 999))
	assert.False(t, ok)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrAskUnexpected.Code, http.StatusInternalServerError, codes.Internal, "dup", "重复"))
	})
}

func TestMessage_Lang(t *testing.T) {
	assert.Equal(t, "问题无效", ErrAskInvalidQuestion.Message("zh-CN"))
	assert.Equal(t, "Invalid question", ErrAskInvalidQuestion.Message("en"))
	assert.Equal(t, http.StatusUnprocessableEntity, ErrAskInvalidQuestion.HTTPStatus())
}
