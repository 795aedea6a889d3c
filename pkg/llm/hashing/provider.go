// Package hashing provides a deterministic, offline embedding provider based
// on feature hashing. Tokens are Unicode letter/digit runs, lowercased; each
// token is hashed into one of D buckets with a hash-derived sign, and the
// resulting vector is L2-normalized.
package hashing

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/kart-io/rag-ask/pkg/llm"
)

// ProviderName 是 hashing 供应商的名称标识符
const ProviderName = "hashing"

// DefaultDimension 默认向量维度，与 all-MiniLM-L6-v2 一致。
const DefaultDimension = 384

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Provider is a feature-hashing embedder.
type Provider struct {
	dim int
}

var _ llm.EmbeddingProvider = (*Provider)(nil)

// NewProvider creates a hashing embedder. Only "dimension" is read from configMap.
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	dim := DefaultDimension
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		dim = v
	}
	return New(dim), nil
}

// New creates a hashing embedder with the given dimension.
func New(dimension int) *Provider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Provider{dim: dimension}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Dimension returns the vector length.
func (p *Provider) Dimension() int {
	return p.dim
}

// Embed implements llm.EmbeddingProvider.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(t)
	}
	return out, nil
}

// EmbedSingle implements llm.EmbeddingProvider.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

func (p *Provider) embed(text string) []float32 {
	vec := make([]float32, p.dim)
	for _, tok := range Tokenize(text) {
		h := xxhash.Sum64String(tok)
		bucket := h % uint64(p.dim)
		// 最高位决定符号，降低哈希冲突带来的偏差
		if h>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// Tokenize splits text into lowercase runs of Unicode letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
