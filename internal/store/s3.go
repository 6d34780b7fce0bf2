package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible store.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3 stores files as objects in a bucket, optionally under a key prefix.
// The revision of a file is its ETag. Directories are common prefixes.
//
// The revision check and the write are two requests, so the check only holds
// with a single writer.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3 returns a store for opts.Bucket.
func NewS3(opts S3Options) (*S3, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	access := strings.TrimSpace(opts.AccessKey)
	secret := strings.TrimSpace(opts.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3{client: client, bucket: bucket, region: region, prefix: normalizePrefix(opts.Prefix)}, nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Get implements Store.
func (s *S3) Get(ctx context.Context, p string) (*File, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(s.prefix, clean), minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error("get", clean, err)
	}
	defer func() { _ = obj.Close() }()

	info, err := obj.Stat()
	if err != nil {
		return nil, s3Error("get", clean, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s3Error("get", clean, err)
	}
	return &File{Path: clean, Revision: info.ETag, Content: data}, nil
}

// Put implements Store.
func (s *S3) Put(ctx context.Context, req PutRequest) (*PutResult, error) {
	clean, err := CleanPath(req.Path)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, &StatusError{Op: "put", Path: clean, Message: "ensure bucket: " + err.Error(), Kind: ErrUnavailable}
	}

	key := objectKey(s.prefix, clean)
	current := ""
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	switch {
	case err == nil:
		current = info.ETag
	case isNoSuchKey(err):
	default:
		return nil, s3Error("put", clean, err)
	}
	if current != req.Revision {
		return nil, &StatusError{Op: "put", Path: clean, Status: 412, Message: "object changed since it was read", Kind: ErrConflict}
	}

	upload, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(req.Content), int64(len(req.Content)),
		minio.PutObjectOptions{ContentType: contentType(clean)})
	if err != nil {
		return nil, s3Error("put", clean, err)
	}
	return &PutResult{Path: clean, Revision: upload.ETag, Created: current == ""}, nil
}

// List implements Store. Entries come back in key order.
func (s *S3) List(ctx context.Context, dir string) ([]Entry, error) {
	clean, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}
	listPrefix := s.prefix
	if clean != "" {
		listPrefix = objectKey(s.prefix, clean) + "/"
	}

	var entries []Entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix}) {
		if obj.Err != nil {
			return nil, s3Error("list", clean, obj.Err)
		}
		if entry, ok := entryFromKey(listPrefix, obj.Key); ok {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 && clean != "" {
		return nil, ErrNotFound
	}
	return entries, nil
}

// entryFromKey turns a non-recursive listing key into an entry.
func entryFromKey(listPrefix, key string) (Entry, bool) {
	name, ok := strings.CutPrefix(key, listPrefix)
	if !ok || name == "" {
		return Entry{}, false
	}
	if dir, isDir := strings.CutSuffix(name, "/"); isDir {
		return Entry{Name: dir, Type: EntryDir}, dir != ""
	}
	return Entry{Name: name, Type: EntryFile}, true
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func objectKey(prefix, p string) string {
	return prefix + p
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func s3Error(op, p string, err error) error {
	if isNoSuchKey(err) {
		return ErrNotFound
	}
	return &StatusError{Op: op, Path: p, Status: minio.ToErrorResponse(err).StatusCode, Message: err.Error(), Kind: ErrUnavailable}
}
