package compute

import (
	"io"

	"github.com/apache/arrow/go/v10/arrow"
)

// BatchIterator is a pull-based sequence of records. NextBatch returns
// io.EOF once the sequence is exhausted. Every returned record is retained
// for the caller, which must release it.
type BatchIterator interface {
	io.Closer
	NextBatch() (arrow.Record, error)
}
