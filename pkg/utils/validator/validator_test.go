package validator

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string   `validate:"notblank"`
	URL      string   `validate:"omitempty,url"`
	Prompt   string   `validate:"prompt"`
	Backend  string   `validate:"oneof=memory milvus"`
	Document []string `validate:"dive,notblank"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		in        sample
		wantCount int
		contains  string
	}{
		{
			name: "valid",
			in: sample{
				Name: "rag", URL: "https://router.huggingface.co/v1", Prompt: "Q: {{question}}",
				Backend: "memory", Document: []string{"Paris is the capital of France."},
			},
			wantCount: 0,
		},
		{
			name:      "blank name",
			in:        sample{Name: "   ", Prompt: "{{question}}", Backend: "memory"},
			wantCount: 1,
			contains:  "sample.Name is required",
		},
		{
			name:      "missing placeholder",
			in:        sample{Name: "x", Prompt: "no placeholder", Backend: "milvus"},
			wantCount: 1,
			contains:  "{{question}}",
		},
		{
			name:      "bad backend and blank document",
			in:        sample{Name: "x", Prompt: "{{question}}", Backend: "faiss", Document: []string{""}},
			wantCount: 2,
			contains:  "must be one of [memory milvus]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Struct(tt.in)
			require.Len(t, errs, tt.wantCount)
			if tt.contains != "" {
				found := false
				for _, err := range errs {
					if strings.Contains(err.Error(), tt.contains) {
						found = true
					}
				}
				assert.True(t, found, "expected an error containing %q, got %v", tt.contains, errs)
			}
		})
	}
}

func TestRegisterGinRules(t *testing.T) {
	require.NoError(t, RegisterGinRules())

	type req struct {
		Question string `binding:"required,notblank"`
	}
	assert.Error(t, binding.Validator.ValidateStruct(&req{Question: "  "}))
	assert.NoError(t, binding.Validator.ValidateStruct(&req{Question: "What?"}))
}
