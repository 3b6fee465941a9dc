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

// userDoc — представление пользователя в коллекции users.
// ID хранится строкой: UUID в текстовом виде читается глазами в shell
// и не зависит от bson-кодеков для [16]byte.
type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name,omitempty"`
	Phone        string    `bson:"phone,omitempty"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	IsBanned     bool      `bson:"is_banned"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Email:        u.Email,
		Name:         u.Name,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		IsBanned:     u.IsBanned,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func fromUserDoc(d userDoc) (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	return &models.User{
		ID:           id,
		Email:        d.Email,
		Name:         d.Name,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Role:         models.Role(d.Role),
		IsBanned:     d.IsBanned,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

// SaveUser создаёт нового пользователя.
func (m *Mongo) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage/mongo/SaveUser"

	if _, err := m.users.InsertOne(ctx, toUserDoc(user)); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/mongo/UserByEmail"

	return m.findUser(ctx, op, bson.D{{Key: "email", Value: email}})
}

// UserByID находит пользователя по ID.
func (m *Mongo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage/mongo/UserByID"

	return m.findUser(ctx, op, bson.D{{Key: "_id", Value: id.String()}})
}

func (m *Mongo) findUser(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fromUserDoc(doc)
}

// ListUsers возвращает всех пользователей, отсортированных по дате создания.
func (m *Mongo) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage/mongo/ListUsers"

	cur, err := m.users.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	var out []models.User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		u, err := fromUserDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *u)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateUserProfile обновляет профильные поля (email/name/phone).
func (m *Mongo) UpdateUserProfile(ctx context.Context, user *models.User) error {
	const op = "storage/mongo/UpdateUserProfile"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "email", Value: user.Email},
		{Key: "name", Value: user.Name},
		{Key: "phone", Value: user.Phone},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	return m.updateUser(ctx, op, user.ID, update)
}

// UpdateUserPassword заменяет хэш пароля.
func (m *Mongo) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const op = "storage/mongo/UpdateUserPassword"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	return m.updateUser(ctx, op, id, update)
}

// UpdateUserRole меняет роль пользователя.
func (m *Mongo) UpdateUserRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	const op = "storage/mongo/UpdateUserRole"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "role", Value: string(role)},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	return m.updateUser(ctx, op, id, update)
}

// SetUserBanned выставляет флаг бана.
func (m *Mongo) SetUserBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	const op = "storage/mongo/SetUserBanned"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_banned", Value: banned},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	return m.updateUser(ctx, op, id, update)
}

func (m *Mongo) updateUser(ctx context.Context, op string, id uuid.UUID, update bson.D) error {
	res, err := m.users.UpdateByID(ctx, id.String(), update)
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

// DeleteUser удаляет пользователя.
func (m *Mongo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const op = "storage/mongo/DeleteUser"

	res, err := m.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
