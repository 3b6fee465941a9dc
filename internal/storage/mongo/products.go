package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

// productDoc — представление товара в коллекции products.
type productDoc struct {
	ID                 string    `bson:"_id"`
	Title              string    `bson:"title"`
	Description        string    `bson:"description"`
	Price              float64   `bson:"price"`
	DiscountPercentage float64   `bson:"discount_percentage"`
	DiscountPrice      float64   `bson:"discount_price"`
	Rating             float64   `bson:"rating"`
	Stock              int64     `bson:"stock"`
	Brand              string    `bson:"brand"`
	Category           string    `bson:"category"`
	Images             []string  `bson:"images"`
	Colors             []string  `bson:"colors,omitempty"`
	IsActive           bool      `bson:"is_active"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

func toProductDoc(p *models.Product) productDoc {
	return productDoc{
		ID:                 p.ID.String(),
		Title:              p.Title,
		Description:        p.Description,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		DiscountPrice:      p.DiscountPrice,
		Rating:             p.Rating,
		Stock:              p.Stock,
		Brand:              p.Brand,
		Category:           p.Category,
		Images:             p.Images,
		Colors:             p.Colors,
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

func fromProductDoc(d productDoc) (*models.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse product id: %w", err)
	}

	return &models.Product{
		ID:                 id,
		Title:              d.Title,
		Description:        d.Description,
		Price:              d.Price,
		DiscountPercentage: d.DiscountPercentage,
		DiscountPrice:      d.DiscountPrice,
		Rating:             d.Rating,
		Stock:              d.Stock,
		Brand:              d.Brand,
		Category:           d.Category,
		Images:             d.Images,
		Colors:             d.Colors,
		IsActive:           d.IsActive,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}, nil
}

// SaveProduct создаёт товар.
func (m *Mongo) SaveProduct(ctx context.Context, product *models.Product) error {
	const op = "storage/mongo/SaveProduct"

	if _, err := m.products.InsertOne(ctx, toProductDoc(product)); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ProductByID находит товар по ID.
func (m *Mongo) ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	const op = "storage/mongo/ProductByID"

	var doc productDoc
	err := m.products.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fromProductDoc(doc)
}

// ListProducts возвращает страницу активных товаров под фильтром.
func (m *Mongo) ListProducts(ctx context.Context, params storage.ListProductsParams) (*models.ProductPage, error) {
	const op = "storage/mongo/ListProducts"

	filter := bson.D{{Key: "is_active", Value: bson.D{{Key: "$ne", Value: false}}}}

	if len(params.Categories) > 0 {
		filter = append(filter, bson.E{Key: "category", Value: bson.D{{Key: "$in", Value: params.Categories}}})
	}

	if len(params.Brands) > 0 {
		filter = append(filter, bson.E{Key: "brand", Value: bson.D{{Key: "$in", Value: params.Brands}}})
	}

	total, err := m.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: count: %w", op, err)
	}

	opts := options.Find()
	if params.SortField != "" {
		order := 1
		if params.SortOrder == "desc" {
			order = -1
		}
		opts.SetSort(bson.D{{Key: sortKey(params.SortField), Value: order}})
	}

	if params.Page > 0 && params.Limit > 0 {
		opts.SetSkip(params.Limit * (params.Page - 1))
		opts.SetLimit(params.Limit)
	}

	return m.findProducts(ctx, op, filter, total, opts)
}

// sortKey переводит клиентское имя поля сортировки в имя bson-поля.
func sortKey(field string) string {
	switch field {
	case "discountPrice":
		return "discount_price"
	case "discountPercentage":
		return "discount_percentage"
	default:
		return field
	}
}

// ListAllProducts возвращает все товары, включая неактивные (админский каталог).
func (m *Mongo) ListAllProducts(ctx context.Context) (*models.ProductPage, error) {
	const op = "storage/mongo/ListAllProducts"

	total, err := m.products.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%s: count: %w", op, err)
	}

	return m.findProducts(ctx, op, bson.D{}, total, options.Find())
}

func (m *Mongo) findProducts(ctx context.Context, op string, filter bson.D, total int64, opts *options.FindOptions) (*models.ProductPage, error) {
	cur, err := m.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	data := make([]models.Product, 0)
	for cur.Next(ctx) {
		var doc productDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		p, err := fromProductDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		data = append(data, *p)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.ProductPage{Data: data, TotalDocs: total}, nil
}

// UpdateProduct перезаписывает изменяемые поля товара.
func (m *Mongo) UpdateProduct(ctx context.Context, product *models.Product) error {
	const op = "storage/mongo/UpdateProduct"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: product.Title},
		{Key: "description", Value: product.Description},
		{Key: "price", Value: product.Price},
		{Key: "discount_percentage", Value: product.DiscountPercentage},
		{Key: "discount_price", Value: product.DiscountPrice},
		{Key: "rating", Value: product.Rating},
		{Key: "stock", Value: product.Stock},
		{Key: "brand", Value: product.Brand},
		{Key: "category", Value: product.Category},
		{Key: "images", Value: product.Images},
		{Key: "colors", Value: product.Colors},
		{Key: "is_active", Value: product.IsActive},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	res, err := m.products.UpdateByID(ctx, product.ID.String(), update)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SetProductActive выставляет флаг активности.
func (m *Mongo) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	const op = "storage/mongo/SetProductActive"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_active", Value: active},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	res, err := m.products.UpdateByID(ctx, id.String(), update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteProduct удаляет товар.
func (m *Mongo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	const op = "storage/mongo/DeleteProduct"

	res, err := m.products.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
