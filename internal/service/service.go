// service содержит бизнес-логику магазина: регистрацию/аутентификацию
// пользователей, выпуск/проверку/ротацию токенов, смену и сброс пароля,
// администрирование пользователей и каталог товаров.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ошибки возвращаются и далее маппятся HTTP-транспортом на пары
//     статус/сообщение (см. комментарии к переменным ошибок ниже).
//   - Детали отказа проверки токена (битая подпись / нет записи) наружу
//     не различаются: транспорт отвечает одним generic 401.
package service

import (
	"errors"

	"github.com/pribylovaa/go-online-store/internal/cache"
	"github.com/pribylovaa/go-online-store/internal/config"
	"github.com/pribylovaa/go-online-store/internal/mailer"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь
	// не найден. Ответ одинаков для обоих случаев, чтобы не позволять
	// перебор email. HTTP 401 "Incorrect credentials".
	ErrInvalidCredentials = errors.New("incorrect credentials")

	// ErrInvalidToken — токен некорректен по формату/подписи/типу или
	// просрочен. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenNotFound — подпись валидна, но персистентной записи нет
	// (ротация уже состоялась, логаут или blacklist). Для logout — HTTP 404,
	// в остальных потоках неотличим от ErrInvalidToken (HTTP 401).
	ErrTokenNotFound = errors.New("token not found")

	// ErrPasswordResetFailed — любой отказ в потоке сброса пароля.
	// Нормализует и битый токен, и отсутствие пользователя. HTTP 401.
	ErrPasswordResetFailed = errors.New("password reset failed")

	// ErrUserNotFound — пользователь не найден. HTTP 404.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserBanned — учётная запись заблокирована. HTTP 403.
	ErrUserBanned = errors.New("user is banned")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 400.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrInvalidRole — роль вне закрытого набора user/admin. HTTP 400.
	ErrInvalidRole = errors.New("invalid role")

	// ErrProductNotFound — товар не найден. HTTP 404.
	ErrProductNotFound = errors.New("product not found")

	// ErrTitleTaken — товар с таким названием уже существует. HTTP 400.
	ErrTitleTaken = errors.New("title already taken")

	// ErrImagesDisabled — хранилище изображений не сконфигурировано. HTTP 501.
	ErrImagesDisabled = errors.New("image storage is not configured")
)

// Service описывает бизнес-логику магазина.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	limits  config.LimitsConfig

	images storage.ImagesStorage // может быть nil, если загрузка изображений выключена
	mail   mailer.Mailer         // может быть nil, тогда письма не отправляются
	tcache cache.TokenCache      // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig, limits config.LimitsConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		limits:  limits,
	}
}

// SetImagesStorage подключает хранилище изображений товаров (опционально).
func (s *Service) SetImagesStorage(images storage.ImagesStorage) {
	s.images = images
}

// SetMailer подключает отправку писем сброса пароля (опционально).
func (s *Service) SetMailer(m mailer.Mailer) {
	s.mail = m
}

// SetTokenCache устанавливает кэш записей о токенах (опционально).
func (s *Service) SetTokenCache(c cache.TokenCache) {
	s.tcache = c
}
