package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/stretchr/testify/require"

	"fpetkovski/arrow-dataset/expr"
)

func TestNewScanOptions(t *testing.T) {
	cases := []struct {
		name   string
		schema *arrow.Schema
		opts   []ScanOption
		valid  bool
	}{
		{name: "defaults", schema: pointSchema, valid: true},
		{name: "filter and batch size", schema: pointSchema, opts: []ScanOption{WithFilter(expr.Equal("visible", true)), WithBatchSize(10)}, valid: true},
		{name: "nil schema"},
		{name: "empty schema", schema: arrow.NewSchema(nil, nil)},
		{name: "zero batch size", schema: pointSchema, opts: []ScanOption{WithBatchSize(0)}},
		{name: "filter on unknown field", schema: pointSchema, opts: []ScanOption{WithFilter(expr.Equal("label", "a"))}},
		{name: "filter with incompatible literal", schema: pointSchema, opts: []ScanOption{WithFilter(expr.Equal("point", "a"))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			options, err := NewScanOptions(tc.schema, tc.opts...)
			if !tc.valid {
				require.ErrorIs(t, err, ErrConstruction)
				return
			}
			require.NoError(t, err)
			require.Same(t, tc.schema, options.Schema())
		})
	}

	options, err := NewScanOptions(pointSchema)
	require.NoError(t, err)
	require.Nil(t, options.Filter())
	require.Equal(t, DefaultBatchSize, options.BatchSize())
}

func TestScanOptionsProject(t *testing.T) {
	options, err := NewScanOptions(pointSchema, WithFilter(expr.Greater("point", 0)), WithBatchSize(16))
	require.NoError(t, err)

	projected, err := options.Project("point")
	require.NoError(t, err)
	require.Equal(t, []string{"point"}, fieldNames(projected.Schema()))
	require.Equal(t, options.Filter(), projected.Filter())
	require.Equal(t, int64(16), projected.BatchSize())

	_, err = options.Project("visible")
	require.ErrorIs(t, err, ErrConstruction)

	_, err = options.Project("missing")
	require.ErrorIs(t, err, ErrConstruction)
}

func TestScanContext(t *testing.T) {
	sctx := NewScanContext()
	require.Equal(t, memory.DefaultAllocator, sctx.Allocator())
	require.Same(t, DefaultThreadPool(), sctx.Pool())

	mem := memory.NewGoAllocator()
	pool := NewThreadPool(2)
	sctx = NewScanContext(WithAllocator(mem), WithThreadPool(pool))
	require.Equal(t, mem, sctx.Allocator())
	require.Same(t, pool, sctx.Pool())
	require.Equal(t, 2, pool.Capacity())
}

func TestThreadPoolBoundsConcurrency(t *testing.T) {
	pool := NewThreadPool(1)
	require.NoError(t, pool.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, pool.Acquire(ctx))

	pool.Release()
	require.NoError(t, pool.Acquire(context.Background()))
	pool.Release()

	require.Equal(t, 1, NewThreadPool(0).Capacity())
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		names = append(names, f.Name)
	}
	return names
}
