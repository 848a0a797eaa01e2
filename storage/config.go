package storage

import (
	"context"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"github.com/thanos-io/objstore/providers/gcs"
	"gopkg.in/yaml.v3"
)

type Provider string

const (
	FILESYSTEM Provider = "FILESYSTEM"
	GCS        Provider = "GCS"
)

// BucketConfig selects an object storage provider and holds its
// provider specific configuration.
type BucketConfig struct {
	Type   Provider  `yaml:"type"`
	Config yaml.Node `yaml:"config"`
}

// NewBucket creates a bucket client from a YAML bucket configuration.
func NewBucket(ctx context.Context, logger log.Logger, conf []byte, component string) (objstore.Bucket, error) {
	var bucketConf BucketConfig
	if err := yaml.Unmarshal(conf, &bucketConf); err != nil {
		return nil, errors.Wrap(err, "parse bucket config")
	}
	return bucketConf.NewBucket(ctx, logger, component)
}

func (c BucketConfig) NewBucket(ctx context.Context, logger log.Logger, component string) (objstore.Bucket, error) {
	var (
		providerConf []byte
		err          error
	)
	if c.Config.Kind != 0 {
		providerConf, err = yaml.Marshal(&c.Config)
		if err != nil {
			return nil, errors.Wrap(err, "marshal provider config")
		}
	}

	var bucket objstore.Bucket
	switch Provider(strings.ToUpper(string(c.Type))) {
	case FILESYSTEM:
		bucket, err = filesystem.NewBucketFromConfig(providerConf)
	case GCS:
		bucket, err = gcs.NewBucket(ctx, logger, providerConf, component)
	default:
		return nil, errors.Errorf("unsupported bucket provider %q", c.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create %s bucket", c.Type)
	}
	return bucket, nil
}
