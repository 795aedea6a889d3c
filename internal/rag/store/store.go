// Package store 提供知识库的向量存储层。
//
// 知识库是一个有序的 (文本, 向量) 集合：位置 i 的文本与位置 i 的向量
// 始终在同一个 Entry 中，不存在两套需要保持对齐的并行结构。
// 构建完成后调用 Seal，之后集合只读，可被并发请求共享。
package store

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch 向量维度与索引维度不一致。
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrSealed 索引已封存，不再接受写入。
	ErrSealed = errors.New("index is sealed")
	// ErrInvalidK k 必须为正数。
	ErrInvalidK = errors.New("k must be positive")
	// ErrOutOfRange 位置越界。
	ErrOutOfRange = errors.New("position out of range")
)

// Entry 是知识库中的一条段落及其嵌入向量。
type Entry struct {
	Text   string
	Vector []float32
}

// Match 是一次检索命中。
type Match struct {
	// Position 段落在知识库中的位置，从 0 开始。
	Position int
	// Distance 与查询向量的平方欧氏距离。
	Distance float32
	// Text 段落原文。
	Text string
}

// Index 定义精确最近邻索引。
type Index interface {
	// Add 按顺序追加条目，位置从当前长度开始顺序分配。
	Add(ctx context.Context, entries ...Entry) error

	// Search 返回距离最近的 k 个条目，按距离升序；距离相同时位置小者在前。
	// k 大于条目数时返回全部条目；空索引对任意维度的查询都返回空切片。
	Search(ctx context.Context, query []float32, k int) ([]Match, error)

	// Get 返回指定位置的条目。
	Get(position int) (Entry, error)

	// Len 返回条目数。
	Len() int

	// Dimension 返回向量维度。
	Dimension() int

	// Seal 封存索引，之后 Add 返回 ErrSealed。
	Seal()

	// Close 释放后端资源。
	Close(ctx context.Context) error
}

// Factory creates an empty index of the given dimension.
type Factory func(ctx context.Context, dimension int) (Index, error)
