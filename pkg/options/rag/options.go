// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/rag-ask/pkg/options"
	"github.com/kart-io/rag-ask/pkg/utils/validator"
)

var _ options.IOptions = (*Options)(nil)

// Index backends.
const (
	BackendMemory = "memory"
	BackendMilvus = "milvus"
)

// DefaultPromptTemplate 默认提示词模板。
// 支持占位符 {{context}}、{{question}} 与 {{fallback}}。
const DefaultPromptTemplate = `You are an assistant that answers questions using only the reference text below.
If the information is not present, answer only "{{fallback}}".

Reference text:
{{context}}

Question: {{question}}
Answer:`

// DefaultFallbackAnswer is returned when no answer can be produced.
const DefaultFallbackAnswer = "I don't know"

// DefaultBannerMessage is reported by the info endpoint.
const DefaultBannerMessage = "RAG API - use POST /ask to ask questions"

// Options contains RAG-specific configuration.
type Options struct {
	// Documents 知识库段落，启动时按顺序嵌入。
	Documents []string `json:"documents" mapstructure:"documents" validate:"dive,notblank"`

	// DocumentsFile 可选的 YAML 文件（字符串列表），追加到 Documents 之后。
	DocumentsFile string `json:"documents-file" mapstructure:"documents-file"`

	// PromptTemplate 生成提示词的模板。
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template" validate:"prompt"`

	// FallbackAnswer 无法作答时的固定回复。
	FallbackAnswer string `json:"fallback-answer" mapstructure:"fallback-answer" validate:"notblank"`

	// TopK is the number of neighbours requested from the index.
	TopK int `json:"top-k" mapstructure:"top-k" validate:"gte=1"`

	// IndexBackend selects the vector index (memory|milvus).
	IndexBackend string `json:"index-backend" mapstructure:"index-backend" validate:"oneof=memory milvus"`

	// Collection is the Milvus collection used by the milvus backend.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbedBatchSize 启动嵌入时每批的文档数。
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size" validate:"gte=1"`

	// BannerMessage is reported by GET /.
	BannerMessage string `json:"banner-message" mapstructure:"banner-message"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		PromptTemplate: DefaultPromptTemplate,
		FallbackAnswer: DefaultFallbackAnswer,
		TopK:           1,
		IndexBackend:   BackendMemory,
		Collection:     "rag_ask_knowledge",
		EmbedBatchSize: 16,
		BannerMessage:  DefaultBannerMessage,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringArrayVar(&o.Documents, p+"documents", o.Documents, "Knowledge base passage (repeatable).")
	fs.StringVar(&o.DocumentsFile, p+"documents-file", o.DocumentsFile, "YAML file with a list of passages appended to the knowledge base.")
	fs.StringVar(&o.PromptTemplate, p+"prompt-template", o.PromptTemplate, "Prompt template with {{context}} and {{question}} placeholders.")
	fs.StringVar(&o.FallbackAnswer, p+"fallback-answer", o.FallbackAnswer, "Answer returned when nothing can be derived from the context.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of nearest passages to retrieve.")
	fs.StringVar(&o.IndexBackend, p+"index-backend", o.IndexBackend, "Vector index backend (memory|milvus).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Milvus collection name for the milvus backend.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Passages per embedding batch at startup.")
	fs.StringVar(&o.BannerMessage, p+"banner-message", o.BannerMessage, "Message reported by GET /.")
}

// Complete 读取 DocumentsFile 并填充默认值。
func (o *Options) Complete() error {
	if o.PromptTemplate == "" {
		o.PromptTemplate = DefaultPromptTemplate
	}
	if o.FallbackAnswer == "" {
		o.FallbackAnswer = DefaultFallbackAnswer
	}
	if o.BannerMessage == "" {
		o.BannerMessage = DefaultBannerMessage
	}
	if o.DocumentsFile == "" {
		return nil
	}

	docs, err := LoadDocumentsFile(o.DocumentsFile)
	if err != nil {
		return err
	}
	o.Documents = append(o.Documents, docs...)
	o.DocumentsFile = ""
	return nil
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	errs := validator.Struct(o)
	if o.IndexBackend == BackendMilvus && o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required for the milvus backend"))
	}
	return errs
}

// LoadDocumentsFile reads a YAML list of passages.
func LoadDocumentsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents file: %w", err)
	}

	var docs []string
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse documents file %s: %w", path, err)
	}
	return docs, nil
}
