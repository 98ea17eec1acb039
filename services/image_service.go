package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/ironworks/storefront-api/utils"
)

// ImageService stores product photos and resolves their URLs
type ImageService interface {
	// UploadImage validates the file and stores it under prefix, returning the object key
	UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, prefix string) (string, error)
	GetImageURL(ctx context.Context, imageKey string) (string, error)
	DeleteImage(ctx context.Context, imageKey string) error
}

// StoredImageService keeps images in an ObjectStore.
// With a public base URL (a CDN in front of the bucket) links are built directly,
// otherwise every link is a presigned GET valid for urlTTL.
type StoredImageService struct {
	store   ObjectStore
	baseURL string
	urlTTL  time.Duration
}

var imageServiceInstance ImageService

// NewImageService wraps store
func NewImageService(store ObjectStore, baseURL string, urlTTL time.Duration) *StoredImageService {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &StoredImageService{store: store, baseURL: strings.TrimRight(baseURL, "/"), urlTTL: urlTTL}
}

// InitImageService installs the process-wide image service
func InitImageService(store ObjectStore, baseURL string, urlTTL time.Duration) ImageService {
	imageServiceInstance = NewImageService(store, baseURL, urlTTL)
	return imageServiceInstance
}

// GetImageService returns the installed image service, nil when uploads are disabled
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService replaces the image service
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

func (s *StoredImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, prefix string) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("closing upload", "error", cerr)
		}
	}()

	key := utils.BuildImageKey(prefix, fileHeader.Filename)
	if err := s.store.Put(ctx, key, file, fileHeader.Size, utils.ImageContentType(fileHeader.Filename)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return key, nil
}

func (s *StoredImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + imageKey, nil
	}
	url, err := s.store.PresignGet(ctx, imageKey, s.urlTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign image URL: %w", err)
	}
	return url, nil
}

func (s *StoredImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}
	if err := s.store.Delete(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
