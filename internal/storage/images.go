package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrImageNotFound — объект (ключ) отсутствует в бакете.
	ErrImageNotFound = errors.New("image not found")
	// ErrInvalidImage — нарушены ограничения загрузки (тип/размер).
	ErrInvalidImage = errors.New("invalid image")
)

// UploadInfo — информация для клиента о presigned PUT загрузке.
//   - UploadURL: конечный URL для PUT-запроса.
//   - Key: ключ (путь) будущего объекта в бакете.
//   - Expires: время жизни подписи.
//   - RequiredHeader: заголовки, которые клиент обязан передать при PUT.
type UploadInfo struct {
	UploadURL      string
	Key            string
	Expires        time.Duration
	RequiredHeader map[string]string
}

// ImagesStorage — контракт генерации presigned URL для изображений товара
// и подтверждения факта загрузки.
type ImagesStorage interface {
	// ImageUploadURL генерирует presigned PUT; внутри — валидация
	// contentType и contentLength.
	ImageUploadURL(ctx context.Context, contentType string, contentLength int64) (*UploadInfo, error)
	// CheckImageUpload проверяет факт загрузки по key (наличие, тип, размер)
	// и возвращает публичный URL объекта.
	CheckImageUpload(ctx context.Context, key string) (string, error)
}
