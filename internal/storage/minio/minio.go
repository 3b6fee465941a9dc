// minio предоставляет реализацию storage.ImagesStorage на базе MinIO/S3.
// minio.go — конструктор клиента: нормализует endpoint, настраивает
// Secure/creds и проверяет наличие целевого бакета.
// images.go — генерация presigned PUT URL и подтверждение загрузки.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/go-online-store/internal/config"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

// ImagesStorage — адаптер MinIO для изображений товаров.
type ImagesStorage struct {
	cfg    config.S3Config
	client *mclient.Client
}

// New создаёт и инициализирует клиент MinIO.
// Убирает схему из endpoint, подбирает Secure по схеме и выполняет
// fail-fast-проверку доступности бакета.
func New(ctx context.Context, cfg config.S3Config) (*ImagesStorage, error) {
	const op = "storage/minio/New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.RootUser, cfg.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &ImagesStorage{cfg: cfg, client: client}, nil
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.ImagesStorage = (*ImagesStorage)(nil)
