package corpus

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds S3-compatible connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	Secure    bool
}

// MinioStore serves a corpus from an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioClient creates a client for cfg. Path-style addressing is used so
// any S3-compatible endpoint works without DNS buckets.
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// NewMinioStore creates a corpus store over bucket. Object keys are
// prefix + "/" + relative_path.
func NewMinioStore(client *minio.Client, bucket, prefix string) *MinioStore {
	return &MinioStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *MinioStore) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}

// Open implements Store.
func (s *MinioStore) Open(ctx context.Context, relPath string) (io.ReadCloser, Info, error) {
	clean, err := cleanPath(relPath)
	if err != nil {
		return nil, Info{}, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(clean), minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, mapMinioError(clean, err)
	}

	// GetObject is lazy; Stat issues the request.
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, Info{}, mapMinioError(clean, err)
	}

	ct := ContentType(clean)
	if ct == "" {
		ct = st.ContentType
	}
	return obj, Info{Size: st.Size, ContentType: ct, ModTime: st.LastModified}, nil
}

// Walk implements Store.
func (s *MinioStore) Walk(ctx context.Context, fn WalkFunc) error {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("list %s/%s: %w", s.bucket, listPrefix, obj.Err)
		}
		rel := strings.TrimPrefix(obj.Key, listPrefix)
		if rel == "" || strings.HasSuffix(rel, "/") || !IsImage(rel) {
			continue
		}
		names = append(names, rel)
	}
	slices.Sort(names)

	for _, rel := range names {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context error
		}
		if err := fn(rel); err != nil {
			return err
		}
	}
	return nil
}

func mapMinioError(rel string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%q: %w", rel, ErrNotFound)
	default:
		return fmt.Errorf("get %q: %w", rel, err)
	}
}
