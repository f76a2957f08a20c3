package mapstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 stores maps in an S3-compatible bucket using the same key layout as
// the filesystem backend, for deployments where the geospatial producer
// and this service do not share a disk.
type S3 struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// S3Config holds connection settings for the S3 backend.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewS3 connects to the endpoint and ensures the bucket exists.
func NewS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check map bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create map bucket: %w", err)
		}
	}

	logger.Info("map store initialized", "driver", "s3", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &S3{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func contentTypeFor(f Format) string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	case FormatJPEG:
		return "image/jpeg"
	}
	return "application/octet-stream"
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Store implements the Store interface's idempotent write contract.
func (s *S3) Store(ctx context.Context, src io.Reader, key Key, extra map[string]any, overwrite bool) (Metadata, error) {
	name, err := key.RelPath()
	if err != nil {
		return Metadata{}, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return Metadata{}, fmt.Errorf("read source image: %w", err)
	}
	if len(data) == 0 {
		return Metadata{}, ErrEmptySource
	}

	if !overwrite {
		if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err == nil {
			s.logger.Warn("map already exists", "object", name)
			return s.existingMetadata(ctx, name)
		} else if !isNoSuchKey(err) {
			return Metadata{}, fmt.Errorf("stat map object: %w", err)
		}
	}

	meta := buildMetadata(key, name, extra)

	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeFor(key.Format)})
	if err != nil {
		return Metadata{}, fmt.Errorf("write map object: %w", err)
	}
	s.logger.Info("map stored", "object", name, "size_bytes", len(data))

	s.writeSidecar(ctx, name, meta)
	return meta, nil
}

// writeSidecar is best-effort, matching the filesystem backend.
func (s *S3) writeSidecar(ctx context.Context, name string, meta Metadata) {
	buf, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.logger.Error("marshal map metadata failed", "object", name, "error", err)
		return
	}
	sidecar := SidecarPath(name)
	_, err = s.client.PutObject(ctx, s.bucket, sidecar, bytes.NewReader(buf), int64(len(buf)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		s.logger.Error("write map metadata failed", "object", sidecar, "error", err)
	}
}

func (s *S3) readSidecar(ctx context.Context, name string) (Metadata, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, SidecarPath(name), minio.GetObjectOptions{})
	if err != nil {
		return Metadata{}, err
	}
	defer obj.Close()

	buf, err := io.ReadAll(obj)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(buf, &meta); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func (s *S3) existingMetadata(ctx context.Context, name string) (Metadata, error) {
	meta, err := s.readSidecar(ctx, name)
	if err != nil {
		if isNoSuchKey(err) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataMissing, name)
		}
		return Metadata{}, fmt.Errorf("read map metadata: %w", err)
	}
	return meta, nil
}

// Get returns nil when the binary is absent; a missing or unreadable
// sidecar degrades to tuple-derived defaults.
func (s *S3) Get(ctx context.Context, key Key) (*Metadata, error) {
	name, err := key.RelPath()
	if err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat map object: %w", err)
	}

	meta, err := s.readSidecar(ctx, name)
	if err != nil {
		if !isNoSuchKey(err) {
			s.logger.Warn("map metadata unreadable, using defaults", "object", name, "error", err)
		}
		meta = defaultMetadata(key, name)
	}
	return &meta, nil
}

// List scans the filter-narrowed key prefix.
func (s *S3) List(ctx context.Context, filter Filter) ([]Metadata, error) {
	prefix := ""
	if filter.CountyID != "" {
		prefix = filter.CountyID + "/"
		if filter.Year != 0 && filter.Week != 0 {
			prefix += strconv.Itoa(filter.Year) + "/" + fmt.Sprintf("%02d", filter.Week) + "/"
		}
	}

	var maps []Metadata
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("scan map store: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, sidecarSuffix) {
			continue
		}
		if !matchesKeyFilter(obj.Key, filter) {
			continue
		}
		meta, err := s.readSidecar(ctx, obj.Key)
		if err != nil {
			if !isNoSuchKey(err) {
				s.logger.Warn("skipping unreadable map metadata", "object", obj.Key, "error", err)
			}
			continue
		}
		if filter.Variable != "" && meta.Variable != filter.Variable {
			continue
		}
		maps = append(maps, meta)
	}

	sort.Slice(maps, func(i, j int) bool {
		return maps[i].GeneratedAt.After(maps[j].GeneratedAt)
	})
	return maps, nil
}

func matchesKeyFilter(key string, filter Filter) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 4 {
		return false
	}
	if filter.Year != 0 && parts[1] != strconv.Itoa(filter.Year) {
		return false
	}
	if filter.Week != 0 && parts[2] != fmt.Sprintf("%02d", filter.Week) {
		return false
	}
	return true
}

// Delete removes the binary then, best-effort, the sidecar.
func (s *S3) Delete(ctx context.Context, key Key) (bool, error) {
	name, err := key.RelPath()
	if err != nil {
		return false, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat map object: %w", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("delete map object: %w", err)
	}
	s.logger.Info("map deleted", "object", name)

	sidecar := SidecarPath(name)
	if err := s.client.RemoveObject(ctx, s.bucket, sidecar, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Warn("delete map metadata failed", "object", sidecar, "error", err)
	}
	return true, nil
}
