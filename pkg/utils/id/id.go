// Package id provides the request id generators.
//
//	gen := id.NewGenerator("ulid")
//	rid := gen.Generate() // 01AN4Z07BY79KA1307SR9X4MV3
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator 生成唯一 ID。
type Generator interface {
	Generate() string
}

// Type names a generator.
type Type string

const (
	TypeHex  Type = "hex"
	TypeULID Type = "ulid"
	TypeUUID Type = "uuid"
)

// NewGenerator 根据类型名称创建生成器，未知类型回退到 hex。
func NewGenerator(typ string) Generator {
	switch Type(typ) {
	case TypeULID:
		return NewULIDGenerator()
	case TypeUUID:
		return UUIDGenerator{}
	default:
		return HexGenerator{}
	}
}

// Valid reports whether typ names a known generator ("" and "random" mean hex).
func Valid(typ string) bool {
	switch Type(typ) {
	case "", "random", TypeHex, TypeULID, TypeUUID:
		return true
	}
	return false
}

// HexGenerator returns 32 hex chars from crypto/rand.
type HexGenerator struct{}

var hexFallbackCounter uint64

// Generate implements Generator.
func (HexGenerator) Generate() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x-%x", time.Now().Unix(), atomic.AddUint64(&hexFallbackCounter, 1))
	}
	return hex.EncodeToString(b)
}

// ULIDGenerator 生成时间可排序的 ULID；同一毫秒内通过单调熵源保持有序。
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator creates a monotonic ULID generator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate implements Generator.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// UUIDGenerator returns random v4 UUIDs.
type UUIDGenerator struct{}

// Generate implements Generator.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
