package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-online-store/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен/товар).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/token_hash/title).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по нормализованному email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// ListUsers возвращает всех пользователей (админский список).
	ListUsers(ctx context.Context) ([]models.User, error)
	// UpdateUserProfile обновляет профильные поля (email/name/phone).
	UpdateUserProfile(ctx context.Context, user *models.User) error
	// UpdateUserPassword заменяет хэш пароля.
	UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// UpdateUserRole меняет роль пользователя.
	UpdateUserRole(ctx context.Context, id uuid.UUID, role models.Role) error
	// SetUserBanned выставляет флаг бана.
	SetUserBanned(ctx context.Context, id uuid.UUID, banned bool) error
	// DeleteUser удаляет пользователя.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// TokenStorage выполняет операции над выпущенными refresh/reset-токенами.
type TokenStorage interface {
	// SaveToken сохраняет запись о токене.
	SaveToken(ctx context.Context, token *models.Token) error
	// TokenByHash находит запись по хэшу подписанной строки.
	TokenByHash(ctx context.Context, hash string) (*models.Token, error)
	// DeleteToken удаляет ровно одну запись по хэшу (ротация/логаут).
	DeleteToken(ctx context.Context, hash string) error
	// DeleteTokensByUser удаляет все токены пользователя заданного типа.
	DeleteTokensByUser(ctx context.Context, userID uuid.UUID, typ models.TokenType) error
	// DeleteExpiredTokens удаляет все просроченные записи.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// ListProductsParams — фильтры/сортировка/пагинация публичного каталога.
type ListProductsParams struct {
	Page       int64
	Limit      int64
	Categories []string
	Brands     []string
	SortField  string
	SortOrder  string // "asc" | "desc"
}

// ProductStorage выполняет операции над товарами каталога.
type ProductStorage interface {
	// SaveProduct создаёт товар.
	SaveProduct(ctx context.Context, product *models.Product) error
	// ProductByID находит товар по ID.
	ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// ListProducts возвращает страницу активных товаров под фильтром.
	ListProducts(ctx context.Context, params ListProductsParams) (*models.ProductPage, error)
	// ListAllProducts возвращает все товары, включая неактивные.
	ListAllProducts(ctx context.Context) (*models.ProductPage, error)
	// UpdateProduct перезаписывает изменяемые поля товара.
	UpdateProduct(ctx context.Context, product *models.Product) error
	// SetProductActive выставляет флаг активности.
	SetProductActive(ctx context.Context, id uuid.UUID, active bool) error
	// DeleteProduct удаляет товар.
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	TokenStorage
	ProductStorage
	Close(ctx context.Context) error
}
