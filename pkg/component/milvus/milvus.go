// Package milvus wraps the Milvus v2 SDK for a positional passage collection:
// an int64 "position" primary key, a "content" varchar and an "embedding"
// float vector indexed with FLAT/L2.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/rag-ask/pkg/options/milvus"
)

// Field names of the passage collection.
const (
	FieldPosition  = "position"
	FieldContent   = "content"
	FieldEmbedding = "embedding"

	maxContentLen = 65535
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RecreateCollection drops name if it exists, creates it for vectors of
// the given dimension, builds the FLAT index and loads it.
func (c *Client) RecreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := c.DropCollection(ctx, name); err != nil {
			return err
		}
	}

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("rag-ask knowledge base").
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(FieldPosition).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(FieldContent).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxContentLen)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension)))

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// FLAT 为精确检索，与内存索引语义一致。
	idxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, index.NewFlatIndex(entity.L2)))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// Insert writes passages and flushes so they are searchable immediately.
func (c *Client) Insert(ctx context.Context, collection string, positions []int64, contents []string, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if len(positions) != len(vectors) || len(contents) != len(vectors) {
		return fmt.Errorf("column length mismatch: positions=%d contents=%d vectors=%d", len(positions), len(contents), len(vectors))
	}

	columns := []column.Column{
		column.NewColumnInt64(FieldPosition, positions),
		column.NewColumnVarChar(FieldContent, contents),
		column.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors),
	}
	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Hit is a single search result. Distance is the squared L2 distance.
type Hit struct {
	Position int64
	Distance float32
}

// Search returns up to topK nearest passages ordered by ascending distance.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithOutputFields(FieldPosition))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	ids, ok := rs.IDs.(*column.ColumnInt64)
	if !ok {
		return nil, fmt.Errorf("unexpected primary key column type %T", rs.IDs)
	}
	for i := 0; i < rs.ResultCount; i++ {
		hits = append(hits, Hit{
			Position: ids.Data()[i],
			Distance: rs.Scores[i],
		})
	}
	return hits, nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
