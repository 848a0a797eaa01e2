package dataset

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
)

// Dataset is a collection of fragments sharing a common schema.
type Dataset struct {
	schema    *arrow.Schema
	fragments []Fragment
}

// NewDataset creates a dataset from fragments whose native schemas contain
// every field of the dataset schema.
func NewDataset(schema *arrow.Schema, fragments ...Fragment) (*Dataset, error) {
	if schema == nil {
		return nil, errors.Wrap(ErrConstruction, "dataset requires a schema")
	}
	for i, fragment := range fragments {
		if fragment == nil {
			return nil, errors.Wrapf(ErrConstruction, "fragment %d is nil", i)
		}
		if _, err := fieldIndices(fragment.Schema(), schema); err != nil {
			return nil, errors.Wrapf(err, "fragment %d", i)
		}
	}
	return &Dataset{schema: schema, fragments: fragments}, nil
}

// NewInMemoryDataset creates a dataset with a single in-memory fragment.
func NewInMemoryDataset(schema *arrow.Schema, batches []arrow.Record, opts ...InMemoryFragmentOption) (*Dataset, error) {
	fragment, err := NewInMemoryFragment(schema, batches, opts...)
	if err != nil {
		return nil, err
	}
	return NewDataset(schema, fragment)
}

func (d *Dataset) Schema() *arrow.Schema { return d.schema }

func (d *Dataset) Fragments() []Fragment { return d.fragments }

// NewScan creates a scanner over the dataset. Without options it reads every
// field of the dataset schema using the default scan context.
func (d *Dataset) NewScan(opts ...ScannerOption) (*Scanner, error) {
	options, err := NewScanOptions(d.schema)
	if err != nil {
		return nil, err
	}
	return NewScanner(d, options, NewScanContext(), opts...)
}
