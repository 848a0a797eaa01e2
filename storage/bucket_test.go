package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
)

const (
	kb = 1 * 1024
	mb = 1 * 1024 * 1024
)

func testObject(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestBucketReader(t *testing.T) {
	ctx := context.Background()
	data := testObject(10 * kb)

	bucket, err := filesystem.NewBucket(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, bucket.Upload(ctx, "data.bin", bytes.NewReader(data)))

	cases := []struct {
		name string
		opts []BucketReaderOpt
	}{
		{name: "single range"},
		{name: "chunked", opts: []BucketReaderOpt{WithMaxReadSize(1000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader, err := NewBucketReader(ctx, "data.bin", bucket, tc.opts...)
			require.NoError(t, err)
			require.Equal(t, int64(len(data)), reader.Size())

			buf := make([]byte, 4*kb)
			n, err := reader.ReadAt(buf, 100)
			require.NoError(t, err)
			require.Equal(t, len(buf), n)
			require.Equal(t, data[100:100+len(buf)], buf)

			n, err = reader.ReadAt(buf, int64(len(data)-10))
			require.ErrorIs(t, err, io.EOF)
			require.Equal(t, 10, n)
			require.Equal(t, data[len(data)-10:], buf[:n])

			_, err = reader.ReadAt(buf, int64(len(data)))
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestBucketReaderSeek(t *testing.T) {
	ctx := context.Background()
	data := testObject(2 * kb)

	bucket := objstore.NewInMemBucket()
	require.NoError(t, bucket.Upload(ctx, "data.bin", bytes.NewReader(data)))

	reader, err := NewBucketReader(ctx, "data.bin", bucket)
	require.NoError(t, err)

	end, err := reader.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), end)

	pos, err := reader.Seek(-16, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)-16), pos)

	tail, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data[len(data)-16:], tail)

	_, err = reader.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestBucketReaderMissingObject(t *testing.T) {
	_, err := NewBucketReader(context.Background(), "missing", objstore.NewInMemBucket())
	require.Error(t, err)
}

func TestNewBucketFromConfig(t *testing.T) {
	dir := t.TempDir()
	conf := fmt.Sprintf("type: filesystem\nconfig:\n  directory: %s\n", dir)

	bucket, err := NewBucket(context.Background(), log.NewNopLogger(), []byte(conf), "test")
	require.NoError(t, err)
	require.NoError(t, bucket.Upload(context.Background(), "object", bytes.NewReader([]byte("data"))))

	contents, err := os.ReadFile(filepath.Join(dir, "object"))
	require.NoError(t, err)
	require.Equal(t, "data", string(contents))

	_, err = NewBucket(context.Background(), log.NewNopLogger(), []byte("type: S4"), "test")
	require.Error(t, err)
}

func BenchmarkBucketReads(b *testing.B) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	require.NoError(b, bucket.Upload(ctx, "object.parquet", bytes.NewReader(testObject(16*mb))))

	chunkSizes := []int{
		16 * mb,
		4 * mb,
		1 * mb,
		256 * kb,
	}
	for _, chunkSize := range chunkSizes {
		b.Run(fmt.Sprintf("%dKB", chunkSize/kb), func(b *testing.B) {
			reader, err := NewBucketReader(ctx, "object.parquet", bucket, WithMaxReadSize(chunkSize))
			require.NoError(b, err)

			buffer := make([]byte, 16*mb)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err = reader.ReadAt(buffer, 0)
				require.NoError(b, err)
			}
		})
	}
}
