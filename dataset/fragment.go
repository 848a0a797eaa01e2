package dataset

import "github.com/apache/arrow/go/v10/arrow"

// Fragment is a unit of data that can be scanned independently, such as a
// file or a list of in-memory batches.
type Fragment interface {
	// Schema returns the native schema of the data in the fragment.
	Schema() *arrow.Schema
	// Scan splits the fragment into tasks producing batches shaped by the
	// options. It does not read data and can be called any number of times.
	Scan(options *ScanOptions, sctx *ScanContext) (ScanTaskIterator, error)
}

// ScanTask produces the batches of one part of a fragment.
type ScanTask interface {
	Options() *ScanOptions
	Context() *ScanContext
	Fragment() Fragment
	// Execute returns a new lazy sequence of batches. Failures to read the
	// underlying data are returned from the sequence as ErrExecution.
	Execute() RecordBatchIterator
}
