package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"schls/config"
	"schls/logger"
)

const objectPrefix = "tracks/"

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".wav":  "audio/wav",
}

// Uploader copies finished downloads into a MinIO bucket.
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader connects to MinIO and creates the bucket if it is missing.
func NewUploader(ctx context.Context, cfg *config.Config) (*Uploader, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &Uploader{client: client, bucket: cfg.MinioBucket}, nil
}

// ObjectKey is the object name a local file is stored under.
func ObjectKey(localPath string) string {
	return path.Join(objectPrefix, filepath.Base(localPath))
}

// ContentType picks the MIME type from the file extension.
func ContentType(localPath string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(localPath))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Upload puts localPath into the bucket and returns the object key.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(localPath)

	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: ContentType(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to %s/%s: %w", localPath, u.bucket, key, err)
	}

	logger.Info("uploaded to MinIO",
		logger.String("bucket", u.bucket),
		logger.String("key", key),
		logger.Int64("size", info.Size))
	return key, nil
}

// ObjectInfo describes one uploaded track.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats summarizes a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// List returns the uploaded tracks, newest first.
func (u *Uploader) List(ctx context.Context) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	for object := range u.client.ListObjects(ctx, u.bucket, minio.ListObjectsOptions{
		Prefix:    objectPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("list %s/%s: %w", u.bucket, objectPrefix, object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  ContentType(object.Key),
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, stats, nil
}

// Remove deletes an uploaded track. A bare file name is mapped to its key.
func (u *Uploader) Remove(ctx context.Context, name string) error {
	key := name
	if !strings.HasPrefix(key, objectPrefix) {
		key = ObjectKey(name)
	}
	if err := u.client.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", u.bucket, key, err)
	}
	logger.Info("removed from MinIO", logger.String("bucket", u.bucket), logger.String("key", key))
	return nil
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
