package minio

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"

	"github.com/pribylovaa/go-online-store/internal/storage"
)

// ImageUploadURL генерирует presigned PUT URL для загрузки изображения товара.
// Валидирует contentType и contentLength согласно конфигу, формирует ключ
// вида "products/<uuid>.<ext>" и возвращает заголовки, которые клиент
// должен передать при PUT (будут проверены при подтверждении).
func (s *ImagesStorage) ImageUploadURL(ctx context.Context, contentType string, contentLength int64) (*storage.UploadInfo, error) {
	const op = "storage/minio/ImageUploadURL"

	if contentLength <= 0 || contentLength > s.cfg.MaxSizeBytes {
		return nil, storage.ErrInvalidImage
	}

	if !isAllowedContentType(s.cfg.AllowedTypes, contentType) {
		return nil, storage.ErrInvalidImage
	}

	var ext string
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}

	key := path.Join("products", uuid.NewString()+ext)

	u, err := s.client.PresignedPutObject(ctx, s.cfg.Bucket, key, s.cfg.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &storage.UploadInfo{
		UploadURL: u.String(),
		Key:       key,
		Expires:   s.cfg.PresignTTL,
		RequiredHeader: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": fmt.Sprintf("%d", contentLength),
		},
	}, nil
}

// CheckImageUpload подтверждает факт загрузки по key: объект существует
// и удовлетворяет ограничениям размера/типа. Возвращает публичный URL.
func (s *ImagesStorage) CheckImageUpload(ctx context.Context, key string) (string, error) {
	const op = "storage/minio/CheckImageUpload"

	if !strings.HasPrefix(key, "products/") {
		return "", storage.ErrInvalidImage
	}

	objInfo, err := s.client.StatObject(ctx, s.cfg.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == 404 {
			return "", storage.ErrImageNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if objInfo.Size <= 0 || objInfo.Size > s.cfg.MaxSizeBytes {
		return "", storage.ErrInvalidImage
	}

	if ct := objInfo.ContentType; ct != "" && !isAllowedContentType(s.cfg.AllowedTypes, ct) {
		return "", storage.ErrInvalidImage
	}

	if s.cfg.PublicBaseURL == "" {
		return "", nil
	}

	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

// isAllowedContentType проверяет, что тип содержимого входит в allow-list.
func isAllowedContentType(allow []string, contentType string) bool {
	for _, a := range allow {
		if a == contentType {
			return true
		}
	}

	return false
}
