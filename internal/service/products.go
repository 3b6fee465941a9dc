package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
	"github.com/pribylovaa/go-online-store/pkg/log"
)

// ProductInput — данные создания/обновления товара.
type ProductInput struct {
	Title              string
	Description        string
	Price              float64
	DiscountPercentage float64
	Rating             float64
	Stock              int64
	Brand              string
	Category           string
	Images             []string
	Colors             []string
}

// ErrInvalidProduct — входные данные товара не проходят валидацию. HTTP 400.
var ErrInvalidProduct = errors.New("invalid product data")

// discountPrice считает цену со скидкой, округляя до двух знаков.
func discountPrice(price, discountPercentage float64) float64 {
	v := price * (1 - discountPercentage/100)
	return math.Round(v*100) / 100
}

func validateProduct(input ProductInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrInvalidProduct
	}

	if input.Price < 0 || input.Stock < 0 {
		return ErrInvalidProduct
	}

	if input.DiscountPercentage < 0 || input.DiscountPercentage > 100 {
		return ErrInvalidProduct
	}

	if input.Rating < 0 || input.Rating > 5 {
		return ErrInvalidProduct
	}

	return nil
}

// CreateProduct создаёт товар; новый товар сразу активен.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	const op = "service/products/CreateProduct"

	if err := validateProduct(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &models.Product{
		ID:                 uuid.New(),
		Title:              strings.TrimSpace(input.Title),
		Description:        input.Description,
		Price:              input.Price,
		DiscountPercentage: input.DiscountPercentage,
		DiscountPrice:      discountPrice(input.Price, input.DiscountPercentage),
		Rating:             input.Rating,
		Stock:              input.Stock,
		Brand:              input.Brand,
		Category:           input.Category,
		Images:             input.Images,
		Colors:             input.Colors,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.storage.SaveProduct(ctx, product); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrTitleTaken
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("product_created",
		"product_id", product.ID.String(),
		"title", product.Title,
	)

	return product, nil
}

// ProductByID возвращает товар по ID.
func (s *Service) ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	const op = "service/products/ProductByID"

	product, err := s.storage.ProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return product, nil
}

// ListProducts возвращает страницу активных товаров публичного каталога.
// Пагинация нормализуется к пределам из конфигурации.
func (s *Service) ListProducts(ctx context.Context, params storage.ListProductsParams) (*models.ProductPage, error) {
	const op = "service/products/ListProducts"

	if params.Page < 1 {
		params.Page = 1
	}

	params.Limit = s.limitOrDefault(params.Limit)

	if params.SortOrder != "asc" && params.SortOrder != "desc" {
		params.SortOrder = "asc"
	}

	page, err := s.storage.ListProducts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// ListAllProducts возвращает все товары, включая неактивные (админ).
func (s *Service) ListAllProducts(ctx context.Context) (*models.ProductPage, error) {
	const op = "service/products/ListAllProducts"

	page, err := s.storage.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// UpdateProduct перезаписывает изменяемые поля товара и пересчитывает
// цену со скидкой.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error) {
	const op = "service/products/UpdateProduct"

	if err := validateProduct(input); err != nil {
		return nil, err
	}

	product, err := s.storage.ProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product.Title = strings.TrimSpace(input.Title)
	product.Description = input.Description
	product.Price = input.Price
	product.DiscountPercentage = input.DiscountPercentage
	product.DiscountPrice = discountPrice(input.Price, input.DiscountPercentage)
	product.Rating = input.Rating
	product.Stock = input.Stock
	product.Brand = input.Brand
	product.Category = input.Category
	product.Images = input.Images
	product.Colors = input.Colors
	product.UpdatedAt = time.Now().UTC()

	if err := s.storage.UpdateProduct(ctx, product); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, ErrTitleTaken
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return product, nil
}

// ToggleProductActive инвертирует активность товара и возвращает
// новое значение.
func (s *Service) ToggleProductActive(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "service/products/ToggleProductActive"

	product, err := s.storage.ProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrProductNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	active := !product.IsActive
	if err := s.storage.SetProductActive(ctx, id, active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrProductNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return active, nil
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	const op = "service/products/DeleteProduct"

	if err := s.storage.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrProductNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("product_deleted", "product_id", id.String())

	return nil
}

// ProductImageUploadURL выдаёт presigned PUT для загрузки изображения.
func (s *Service) ProductImageUploadURL(ctx context.Context, contentType string, contentLength int64) (*storage.UploadInfo, error) {
	const op = "service/products/ProductImageUploadURL"

	if s.images == nil {
		return nil, ErrImagesDisabled
	}

	info, err := s.images.ImageUploadURL(ctx, contentType, contentLength)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			return nil, err
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return info, nil
}

// ConfirmProductImage подтверждает загрузку по ключу и добавляет
// публичный URL изображения к товару.
func (s *Service) ConfirmProductImage(ctx context.Context, productID uuid.UUID, key string) (*models.Product, error) {
	const op = "service/products/ConfirmProductImage"

	if s.images == nil {
		return nil, ErrImagesDisabled
	}

	publicURL, err := s.images.CheckImageUpload(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrImageNotFound) || errors.Is(err, storage.ErrInvalidImage) {
			return nil, err
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product, err := s.storage.ProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, img := range product.Images {
		if img == publicURL {
			return product, nil
		}
	}

	product.Images = append(product.Images, publicURL)
	product.UpdatedAt = time.Now().UTC()

	if err := s.storage.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return product, nil
}

// limitOrDefault нормализует размер страницы к сконфигурированным пределам.
func (s *Service) limitOrDefault(limit int64) int64 {
	def, max := s.limits.DefaultPageSize, s.limits.MaxPageSize
	if def <= 0 {
		def = 10
	}

	if max <= 0 {
		max = 100
	}

	if limit <= 0 {
		return def
	}

	if limit > max {
		return max
	}

	return limit
}
