package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error)
	GetURL(filename string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filename)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *LocalStorageProvider) UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filename)
	// 如果源文件和目标文件一样，直接返回
	if localPath == dst {
		return p.GetURL(filename), nil
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return p.Upload(ctx, filename, src, -1, contentType)
}

func (p *LocalStorageProvider) GetURL(filename string) string {
	return strings.TrimRight(p.Config.PublicURL, "/") + "/" + filename
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error) {
	_, err := p.Client.FPutObject(ctx, p.Config.MinioBucket, filename, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	if p.Config.PublicURL != "" && strings.HasPrefix(p.Config.PublicURL, "http") {
		return strings.TrimRight(p.Config.PublicURL, "/") + "/" + filename
	}
	return "/" + p.Config.MinioBucket + "/" + filename
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(filename, reader, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *OSSStorageProvider) UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObjectFromFile(filename, localPath, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *OSSStorageProvider) GetURL(filename string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, filename)
}

// StorageService 题目图片与视频存储
type StorageService struct {
	Provider StorageProvider
	now      func() time.Time
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("MinIO init failed, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("OSS init failed, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}
	return &StorageService{Provider: provider, now: time.Now}
}

// MediaUpload 上传结果
// swagger:model MediaUpload
type MediaUpload struct {
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	MimeType     string  `json:"mimeType"`
	Size         int64   `json:"size"`
	Duration     float64 `json:"duration,omitempty"`
}

// UploadMedia 上传题目图片或视频，视频额外生成封面
func (s *StorageService) UploadMedia(ctx context.Context, fh *multipart.FileHeader) (*MediaUpload, error) {
	if fh.Size <= 0 || fh.Size > util.MaxMediaSize {
		return nil, fmt.Errorf("%w: file size must be between 1 byte and %d MB", util.ErrValidation, util.MaxMediaSize>>20)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mimeType, err := util.ValidateMimeType(file, util.AllowedMediaTypes)
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if err != nil {
		if !util.HasVideoExtension(fh.Filename) {
			return nil, fmt.Errorf("%w: %v", util.ErrValidation, err)
		}
		mimeType = "video/" + strings.TrimPrefix(ext, ".")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("questions/%s/%s%s", s.now().Format("2006/01"), uuid.New().String(), ext)
	result := &MediaUpload{MimeType: mimeType, Size: fh.Size}

	if util.IsImage(mimeType) {
		result.URL, err = s.Provider.Upload(ctx, name, file, fh.Size, mimeType)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return s.uploadVideo(ctx, name, file, result)
}

// uploadVideo 先落临时文件，ffprobe 与截帧都需要本地路径
func (s *StorageService) uploadVideo(ctx context.Context, name string, src io.Reader, result *MediaUpload) (*MediaUpload, error) {
	tmp, err := os.CreateTemp("", "media-*"+filepath.Ext(name))
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	result.URL, err = s.Provider.UploadFile(ctx, name, tmp.Name(), result.MimeType)
	if err != nil {
		return nil, err
	}

	// 封面失败不影响视频本身
	info, err := util.ProbeVideo(tmp.Name())
	if err != nil {
		logger.Log.Warn("Video probe failed", zap.String("file", name), zap.Error(err))
		return result, nil
	}
	result.Duration = info.Duration

	thumbPath := strings.TrimSuffix(tmp.Name(), filepath.Ext(tmp.Name())) + ".jpg"
	defer os.Remove(thumbPath)
	if err := util.GenerateThumbnail(tmp.Name(), thumbPath, util.ThumbnailOffset(info.Duration)); err != nil {
		logger.Log.Warn("Thumbnail generation failed", zap.String("file", name), zap.Error(err))
		return result, nil
	}
	thumbName := strings.TrimSuffix(name, filepath.Ext(name)) + "_thumb.jpg"
	if url, err := s.Provider.UploadFile(ctx, thumbName, thumbPath, "image/jpeg"); err != nil {
		logger.Log.Warn("Thumbnail upload failed", zap.String("file", thumbName), zap.Error(err))
	} else {
		result.ThumbnailURL = url
	}
	return result, nil
}
