package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
	endpoint   string        // 服务端点，用于构造公开URL
	useSSL     bool          // 是否使用SSL
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
		endpoint:   cfg.Endpoint,
		useSSL:     cfg.UseSSL,
	}, nil
}

// Upload 按路径保存内容到MinIO
func (s *MinioStorage) Upload(reader io.Reader, objectPath string) (FileInfo, error) {
	objectPath = normalizeObjectPath(objectPath)
	if objectPath == "" {
		return FileInfo{}, fmt.Errorf("invalid storage path")
	}

	// 读到内存以获得大小；大文件场景应改为流式上传
	content, err := io.ReadAll(reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read file content: %v", err)
	}

	contentType := getMimeType(objectPath)
	_, err = s.client.PutObject(
		context.Background(),
		s.bucketName,
		objectPath,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %v", err)
	}

	return FileInfo{
		Path:      objectPath,
		Name:      path.Base(objectPath),
		Size:      int64(len(content)),
		MimeType:  contentType,
		PublicURL: s.publicURL(objectPath),
	}, nil
}

// Download 获取MinIO中的文件
func (s *MinioStorage) Download(objectPath string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		normalizeObjectPath(objectPath),
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}

	return obj, nil
}

// Delete 从MinIO中删除文件
func (s *MinioStorage) Delete(objectPath string) error {
	err := s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		normalizeObjectPath(objectPath),
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

// Exists 检查MinIO中文件是否存在
func (s *MinioStorage) Exists(objectPath string) (bool, error) {
	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		normalizeObjectPath(objectPath),
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %v", err)
	}
	return true, nil
}

// List 列出MinIO中的所有文件
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucketName,
		minio.ListObjectsOptions{Recursive: true},
	)

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}

		files = append(files, FileInfo{
			Path:      object.Key,
			Name:      path.Base(object.Key),
			Size:      object.Size,
			MimeType:  getMimeType(object.Key),
			PublicURL: s.publicURL(object.Key),
		})
	}

	return files, nil
}

// publicURL 构造对象的公开访问URL
func (s *MinioStorage) publicURL(objectPath string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucketName, objectPath)
}

// normalizeObjectPath 规范化对象路径为斜线分隔的相对路径
func normalizeObjectPath(objectPath string) string {
	cleaned := path.Clean(strings.ReplaceAll(objectPath, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return ""
	}
	return cleaned
}
