package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/prometheus/model/labels"
	"github.com/stretchr/testify/require"

	"fpetkovski/arrow-dataset/storage"
)

const testConfig = `
bucket:
  type: FILESYSTEM
  config:
    directory: /data
files:
  - path: points/part-0.parquet
  - path: points/part-1.arrow
  - path: points/part-2
    format: IPC
scan:
  columns: [point, visible]
  selector: '{job=~"api.*", env!=""}'
  batch_size: 1024
  concurrency: 4
  max_read_size: 8MiB
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, storage.FILESYSTEM, cfg.Bucket.Type)
	require.Equal(t, []File{
		{Path: "points/part-0.parquet", Format: FormatParquet},
		{Path: "points/part-1.arrow", Format: FormatIPC},
		{Path: "points/part-2", Format: FormatIPC},
	}, cfg.Files)
	require.Equal(t, []string{"point", "visible"}, cfg.Scan.Columns)
	require.Equal(t, int64(1024), cfg.Scan.BatchSize)
	require.Equal(t, 4, cfg.Scan.Concurrency)

	matchers, err := cfg.Scan.Matchers()
	require.NoError(t, err)
	require.Len(t, matchers, 2)
	require.Equal(t, labels.MatchRegexp, matchers[0].Type)
	require.Equal(t, "job", matchers[0].Name)

	size, err := cfg.Scan.MaxReadBytes()
	require.NoError(t, err)
	require.Equal(t, int64(8*1024*1024), size)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		config string
	}{
		{name: "no files", config: "files: []"},
		{name: "missing path", config: "files: [{format: parquet}]"},
		{name: "unknown format", config: "files: [{path: a.csv, format: csv}]"},
		{name: "invalid selector", config: "files: [{path: a}]\nscan: {selector: '{job='}"},
		{name: "invalid read size", config: "files: [{path: a}]\nscan: {max_read_size: lots}"},
		{name: "negative batch size", config: "files: [{path: a}]\nscan: {batch_size: -1}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.config))
			require.Error(t, err)
		})
	}
}
