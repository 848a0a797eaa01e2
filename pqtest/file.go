package pqtest

import (
	"bytes"
	"context"

	"github.com/segmentio/parquet-go"
	"github.com/thanos-io/objstore"
)

// Row is the layout of the Parquet files written by tests.
type Row struct {
	Visible bool   `parquet:"visible"`
	Point   int32  `parquet:"point"`
	Label   string `parquet:"label"`
}

func PointRow(visible bool, point int32, label string) Row {
	return Row{Visible: visible, Point: point, Label: label}
}

// CreateFile encodes every part as its own row group.
func CreateFile(parts [][]Row) ([]byte, error) {
	var buffer bytes.Buffer
	writer := parquet.NewGenericWriter[Row](&buffer,
		parquet.PageBufferSize(4),
	)

	for _, part := range parts {
		if _, err := writer.Write(part); err != nil {
			return nil, err
		}
		if err := writer.Flush(); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// UploadFile writes a Parquet file with the given row groups to a bucket.
func UploadFile(ctx context.Context, bucket objstore.Bucket, name string, parts [][]Row) error {
	data, err := CreateFile(parts)
	if err != nil {
		return err
	}
	return bucket.Upload(ctx, name, bytes.NewReader(data))
}
