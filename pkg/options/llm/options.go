// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
	"github.com/kart-io/rag-ask/pkg/utils/validator"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// DefaultAPIKeyEnv 默认凭证环境变量。
const DefaultAPIKeyEnv = "HUGGINGFACEHUB_API_TOKEN"

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（huggingface, hashing）。
	Provider string `json:"provider" mapstructure:"provider" validate:"required"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url" validate:"omitempty,url"`

	// APIKeyEnv 保存 Bearer 凭证的环境变量名。
	APIKeyEnv string `json:"api-key-env" mapstructure:"api-key-env"`

	// APIKey 在 Complete 阶段从 APIKeyEnv 读取，不从配置文件加载。
	APIKey string `json:"-" mapstructure:"-"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间，0 表示不设置客户端超时。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// MaxTokens 生成的最大 token 数（仅 chat）。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens" validate:"gte=0"`

	// Temperature 采样温度（仅 chat）。
	Temperature float64 `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`

	// Dimension 向量维度：hashing embedding 的输出维度，也是空知识库的索引维度。
	Dimension int `json:"dimension" mapstructure:"dimension" validate:"gte=0"`

	// RequireAPIKey 为 true 时凭证为空会导致校验失败。
	RequireAPIKey bool `json:"-" mapstructure:"-"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:  "huggingface",
		BaseURL:   "https://router.huggingface.co/hf-inference/models",
		APIKeyEnv: DefaultAPIKeyEnv,
		Model:     "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:   120 * time.Second,
		Dimension: 384,
	}
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:      "huggingface",
		BaseURL:       "https://router.huggingface.co/v1",
		APIKeyEnv:     DefaultAPIKeyEnv,
		Model:         "meta-llama/Meta-Llama-3-8B-Instruct",
		// 生成请求默认不设超时，沿用 transport 默认行为
		Timeout:       0,
		MaxTokens:     200,
		Temperature:   0.1,
		RequireAPIKey: true,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_tokens":  o.MaxTokens,
		"temperature": o.Temperature,
		"dimension":   o.Dimension,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (huggingface, hashing).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKeyEnv, p+"api-key-env", o.APIKeyEnv, "Environment variable holding the bearer token.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout, 0 disables it.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate (chat only).")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature (chat only).")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Vector dimension of the hashing embedder and of an empty knowledge base.")
}

// Complete 从环境变量读取凭证。
func (o *ProviderOptions) Complete() error {
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = DefaultAPIKeyEnv
	}
	o.APIKey = strings.TrimSpace(os.Getenv(o.APIKeyEnv))
	return nil
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := validator.Struct(o)
	if o.NeedsAPIKey() && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("environment variable %s is not set or empty", o.APIKeyEnv))
	}
	if o.Provider == "huggingface" && o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required for huggingface provider"))
	}
	return errs
}

// NeedsAPIKey reports whether the provider calls a remote authenticated endpoint.
func (o *ProviderOptions) NeedsAPIKey() bool {
	return o.RequireAPIKey || o.Provider == "huggingface"
}
