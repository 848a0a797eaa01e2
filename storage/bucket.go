package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"
)

// BucketReader exposes a single object in a bucket as a seekable file.
// ReadAt translates into range requests against the bucket.
type BucketReader struct {
	ctx    context.Context
	name   string
	bucket objstore.BucketReader

	readerAt io.ReaderAt
	position int64
	size     int64
}

type BucketReaderOpt func(*BucketReader)

// WithMaxReadSize splits reads larger than maxReadSize into parallel range requests.
func WithMaxReadSize(maxReadSize int) BucketReaderOpt {
	return func(r *BucketReader) {
		if maxReadSize > 0 {
			r.readerAt = NewChunkedBucketReader(rangeReader{r}, maxReadSize)
		}
	}
}

func NewBucketReader(ctx context.Context, name string, bucket objstore.BucketReader, opts ...BucketReaderOpt) (*BucketReader, error) {
	attrs, err := bucket.Attributes(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "get attributes of %s", name)
	}

	r := &BucketReader{
		ctx:    ctx,
		name:   name,
		bucket: bucket,
		size:   attrs.Size,
	}
	r.readerAt = rangeReader{r}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *BucketReader) Name() string { return r.name }

func (r *BucketReader) Size() int64 { return r.size }

func (r *BucketReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	var short bool
	if remaining := r.size - off; int64(len(p)) > remaining {
		p = p[:remaining]
		short = true
	}

	n, err := r.readerAt.ReadAt(p, off)
	if err != nil {
		return n, err
	}
	if short {
		return n, io.EOF
	}
	return n, nil
}

func (r *BucketReader) Read(p []byte) (int, error) {
	n, err := r.ReadAt(p, r.position)
	r.position += int64(n)
	return n, err
}

func (r *BucketReader) Seek(offset int64, whence int) (int64, error) {
	newPosition := r.position
	switch whence {
	case io.SeekStart:
		newPosition = offset
	case io.SeekCurrent:
		newPosition += offset
	case io.SeekEnd:
		newPosition = r.size + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence")
	}
	if newPosition < 0 {
		return 0, fmt.Errorf("seek: negative offset")
	}

	r.position = newPosition
	return r.position, nil
}

type rangeReader struct {
	r *BucketReader
}

func (rr rangeReader) ReadAt(p []byte, off int64) (int, error) {
	rangeReader, err := rr.r.bucket.GetRange(rr.r.ctx, rr.r.name, off, int64(len(p)))
	if err != nil {
		return 0, errors.Wrapf(err, "read %d bytes at %d from %s", len(p), off, rr.r.name)
	}
	defer rangeReader.Close()

	return io.ReadFull(rangeReader, p)
}
