package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-online-store/internal/http/handlers"
	"github.com/pribylovaa/go-online-store/internal/http/middleware"
	"github.com/pribylovaa/go-online-store/internal/models"
	"github.com/pribylovaa/go-online-store/internal/service"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler: chi-роутер с REST-эндпойнтами,
// обёрнутый внешним контуром мидлваров через Chain.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()
	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
	} else {
		registerRoutes(root, h, svc)
	}

	// Внешний контур (внешний -> внутренний). RequestID — до логирования,
	// чтобы id попал в request-scoped логгер.
	outer := []middleware.Middleware{
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
	}
	if opts.Timeout > 0 {
		outer = append(outer, middleware.Timeout(opts.Timeout))
	}

	return middleware.Chain(root, outer...)
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, svc *service.Service) {
	authed := middleware.RequireAuth(svc)
	adminOnly := middleware.RequireAuth(svc, models.RoleAdmin)

	// auth
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.RegisterUser)
		r.Post("/login", h.LoginUser)
		r.Post("/logout", h.Logout)
		r.Post("/refresh-tokens", h.RefreshTokens)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.With(adminOnly).Patch("/admin/change-password/{id}", h.AdminChangePassword)
		r.With(authed).Patch("/change-password/{id}", h.ChangePassword)
	})

	// users
	r.Route("/users", func(r chi.Router) {
		r.With(adminOnly).Get("/", h.ListUsers)
		r.With(authed).Get("/{id}", h.GetUser)
		r.With(authed).Patch("/{id}", h.UpdateUser)
		r.With(adminOnly).Patch("/role/{id}", h.UpdateUserRole)
		r.With(adminOnly).Patch("/ban/{id}", h.ToggleUserBan)
		r.With(adminOnly).Delete("/{id}", h.DeleteUser)
	})

	// products
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.With(adminOnly).Get("/admin", h.ListAllProducts)
		r.With(adminOnly).Post("/", h.CreateProduct)
		r.With(adminOnly).Post("/images/presign", h.ProductImagePresign)
		r.With(adminOnly).Patch("/images/{id}", h.ProductImageConfirm)
		r.With(adminOnly).Patch("/deactivate/{id}", h.ToggleProductActive)
		r.Get("/{id}", h.GetProduct)
		r.With(adminOnly).Put("/{id}", h.UpdateProduct)
		r.With(adminOnly).Delete("/{id}", h.DeleteProduct)
	})
}
