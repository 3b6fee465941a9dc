// mongo предоставляет реализацию storage.Storage на базе MongoDB.
//
// mongo.go — подключение, выбор БД и обеспечение индексов;
// users.go/tokens.go/products.go — операции над коллекциями.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pribylovaa/go-online-store/internal/storage"
)

const (
	usersCollection    = "users"
	tokensCollection   = "tokens"
	productsCollection = "products"
	defaultDBName      = "store"
)

// Mongo — тонкий адаптер для подключения и коллекций MongoDB.
type Mongo struct {
	client   *mongodriver.Client
	db       *mongodriver.Database
	users    *mongodriver.Collection
	tokens   *mongodriver.Collection
	products *mongodriver.Collection
}

// New подключается к MongoDB, проверяет соединение и обеспечивает индексы.
func New(ctx context.Context, dbURL string) (*Mongo, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("mongo: empty db url")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(dbURL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(dbURL))

	m := &Mongo{
		client:   cli,
		db:       db,
		users:    db.Collection(usersCollection),
		tokens:   db.Collection(tokensCollection),
		products: db.Collection(productsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

// Close разрывает соединение с БД.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes создаёт индексы, необходимые магазину:
//   - users: уникальный email;
//   - tokens: уникальный token_hash, TTL по expires_at
//     (expireAfterSeconds=0 -> используется метка из документа),
//     user_id+type для пакетной инвалидации reset-токенов;
//   - products: уникальный title, category и brand для фильтров каталога.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	userModels := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
	}

	tokenModels := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetName("uniq_token_hash").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetName("user_type"),
		},
	}

	productModels := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetName("uniq_title").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category"),
		},
		{
			Keys:    bson.D{{Key: "brand", Value: 1}},
			Options: options.Index().SetName("brand"),
		},
	}

	if _, err := m.users.Indexes().CreateMany(ctx, userModels); err != nil {
		return fmt.Errorf("mongo ensure user indexes: %w", err)
	}

	if _, err := m.tokens.Indexes().CreateMany(ctx, tokenModels); err != nil {
		return fmt.Errorf("mongo ensure token indexes: %w", err)
	}

	if _, err := m.products.Indexes().CreateMany(ctx, productModels); err != nil {
		return fmt.Errorf("mongo ensure product indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не парсится, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

// isDuplicateKey распознаёт нарушение уникального индекса.
func isDuplicateKey(err error) bool {
	return mongodriver.IsDuplicateKeyError(err)
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.Storage = (*Mongo)(nil)
