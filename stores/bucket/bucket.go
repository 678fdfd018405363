package bucketstore

import (
	"context"
	"fmt"
	kitlog "github.com/go-kit/log"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"github.com/thanos-io/objstore/providers/s3"
	"io"
	"os"
)

type BucketStore struct {
	Bucket objstore.Bucket
}

// New picks the bucket implementation: S3 when configured, a local
// directory when dataDir is set, otherwise an in-memory bucket that is
// lost on restart.
func New(s3Config *s3.Config, dataDir string) (*BucketStore, error) {
	if s3Config != nil {
		return NewS3(*s3Config)
	}
	if dataDir != "" {
		bucket, err := filesystem.NewBucket(dataDir)
		if err != nil {
			return nil, fmt.Errorf("cannot configure filesystem bucket: %w", err)
		}
		return &BucketStore{Bucket: bucket}, nil
	}
	return NewInMem(), nil
}

func NewS3(cfg s3.Config) (*BucketStore, error) {
	kitlogger := kitlog.NewJSONLogger(kitlog.NewSyncWriter(os.Stdout))
	client, err := s3.NewBucketWithConfig(kitlogger, cfg, "diacates")
	if err != nil {
		return nil, fmt.Errorf("cannot configure bucket store: %w", err)
	}

	return &BucketStore{Bucket: client}, nil
}

func NewInMem() *BucketStore {
	return &BucketStore{Bucket: objstore.NewInMemBucket()}
}

func (b *BucketStore) Close() error {
	return b.Bucket.Close()
}

func (b *BucketStore) Ping(ctx context.Context) error {
	_, err := b.Bucket.Exists(ctx, "ping")
	return err
}

func (b *BucketStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	return b.Bucket.Get(ctx, name)
}

func (b *BucketStore) Upload(ctx context.Context, name string, r io.Reader) error {
	return b.Bucket.Upload(ctx, name, r)
}

func (b *BucketStore) Iter(ctx context.Context, dir string, f func(name string) error) error {
	return b.Bucket.Iter(ctx, dir, f)
}

func (b *BucketStore) IsObjNotFoundErr(err error) bool {
	return b.Bucket.IsObjNotFoundErr(err)
}

func (b *BucketStore) IsAccessDeniedErr(err error) bool {
	return b.Bucket.IsAccessDeniedErr(err)
}
