package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

// tokenDoc — представление refresh/reset-токена в коллекции tokens.
type tokenDoc struct {
	TokenHash   string    `bson:"token_hash"`
	UserID      string    `bson:"user_id"`
	Role        string    `bson:"role"`
	Type        string    `bson:"type"`
	ExpiresAt   time.Time `bson:"expires_at"`
	Blacklisted bool      `bson:"blacklisted"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toTokenDoc(t *models.Token) tokenDoc {
	return tokenDoc{
		TokenHash:   t.TokenHash,
		UserID:      t.UserID.String(),
		Role:        string(t.Role),
		Type:        string(t.Type),
		ExpiresAt:   t.ExpiresAt.UTC(),
		Blacklisted: t.Blacklisted,
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

func fromTokenDoc(d tokenDoc) (*models.Token, error) {
	uid, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse token user id: %w", err)
	}

	return &models.Token{
		TokenHash:   d.TokenHash,
		UserID:      uid,
		Role:        models.Role(d.Role),
		Type:        models.TokenType(d.Type),
		ExpiresAt:   d.ExpiresAt,
		Blacklisted: d.Blacklisted,
		CreatedAt:   d.CreatedAt,
	}, nil
}

// SaveToken сохраняет запись о выпущенном токене.
func (m *Mongo) SaveToken(ctx context.Context, token *models.Token) error {
	const op = "storage/mongo/SaveToken"

	if _, err := m.tokens.InsertOne(ctx, toTokenDoc(token)); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TokenByHash находит запись по хэшу подписанной строки.
func (m *Mongo) TokenByHash(ctx context.Context, hash string) (*models.Token, error) {
	const op = "storage/mongo/TokenByHash"

	var doc tokenDoc
	err := m.tokens.FindOne(ctx, bson.D{{Key: "token_hash", Value: hash}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fromTokenDoc(doc)
}

// DeleteToken удаляет ровно одну запись по хэшу. Повторный вызов с тем же
// хэшем возвращает ErrNotFound — на этом держится одноразовость refresh-токена.
func (m *Mongo) DeleteToken(ctx context.Context, hash string) error {
	const op = "storage/mongo/DeleteToken"

	res, err := m.tokens.DeleteOne(ctx, bson.D{{Key: "token_hash", Value: hash}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteTokensByUser удаляет все токены пользователя заданного типа
// (зачистка reset-токенов после успешного сброса пароля).
func (m *Mongo) DeleteTokensByUser(ctx context.Context, userID uuid.UUID, typ models.TokenType) error {
	const op = "storage/mongo/DeleteTokensByUser"

	filter := bson.D{
		{Key: "user_id", Value: userID.String()},
		{Key: "type", Value: string(typ)},
	}

	if _, err := m.tokens.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredTokens удаляет все просроченные записи. Обычно это делает
// TTL-индекс; операция нужна тестам и ручной зачистке.
func (m *Mongo) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage/mongo/DeleteExpiredTokens"

	filter := bson.D{{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now.UTC()}}}}

	if _, err := m.tokens.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
