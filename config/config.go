package config

import (
	"os"
	"path"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/promql/parser"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"fpetkovski/arrow-dataset/storage"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatIPC     Format = "ipc"
)

var ipcExtensions = []string{".arrow", ".ipc", ".feather"}

// Config describes a dataset stored in a bucket and how to scan it.
type Config struct {
	Bucket storage.BucketConfig `yaml:"bucket"`
	Files  []File               `yaml:"files"`
	Scan   Scan                 `yaml:"scan"`
}

type File struct {
	Path   string `yaml:"path"`
	Format Format `yaml:"format"`
}

type Scan struct {
	// Columns to read. All columns of the first file are read when empty.
	Columns []string `yaml:"columns"`
	// Selector is a Prometheus series selector applied to string columns,
	// for example {job=~"api.*"}.
	Selector    string `yaml:"selector"`
	BatchSize   int64  `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	Readahead   int    `yaml:"readahead"`
	// MaxReadSize splits large bucket reads into parallel range requests, e.g. "8MiB".
	MaxReadSize string `yaml:"max_read_size"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Files) == 0 {
		return errors.New("config must list at least one file")
	}
	for i, f := range c.Files {
		if f.Path == "" {
			return errors.Errorf("file %d has no path", i)
		}
		switch Format(strings.ToLower(string(f.Format))) {
		case "":
			if slices.Contains(ipcExtensions, path.Ext(f.Path)) {
				c.Files[i].Format = FormatIPC
			} else {
				c.Files[i].Format = FormatParquet
			}
		case FormatParquet, FormatIPC:
			c.Files[i].Format = Format(strings.ToLower(string(f.Format)))
		default:
			return errors.Errorf("file %s has unsupported format %q", f.Path, f.Format)
		}
	}
	if c.Scan.BatchSize < 0 {
		return errors.Errorf("batch size must not be negative, got %d", c.Scan.BatchSize)
	}
	if _, err := c.Scan.Matchers(); err != nil {
		return err
	}
	if _, err := c.Scan.MaxReadBytes(); err != nil {
		return err
	}
	return nil
}

// Matchers parses the selector of the scan.
func (s Scan) Matchers() ([]*labels.Matcher, error) {
	if s.Selector == "" {
		return nil, nil
	}
	matchers, err := parser.ParseMetricSelector(s.Selector)
	if err != nil {
		return nil, errors.Wrapf(err, "parse selector %s", s.Selector)
	}
	return matchers, nil
}

func (s Scan) MaxReadBytes() (int64, error) {
	if s.MaxReadSize == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(s.MaxReadSize)
	if err != nil {
		return 0, errors.Wrapf(err, "parse max read size %s", s.MaxReadSize)
	}
	return size, nil
}
