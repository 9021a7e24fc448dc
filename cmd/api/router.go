package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/auth"
	"github.com/fotopanel/admin/internal/gallery"
	appMiddleware "github.com/fotopanel/admin/internal/middleware"
)

// routes collects the handlers mounted by newRouter.
type routes struct {
	Health  http.HandlerFunc
	Metrics http.Handler
	Swagger http.Handler
	Static  http.Handler

	Home      http.HandlerFunc
	LoginPage http.HandlerFunc
	Login     http.HandlerFunc
	Logout    http.HandlerFunc
	Panel     http.HandlerFunc

	GalleryFragment http.HandlerFunc
	ListPhotos      http.HandlerFunc
	UploadPhotos    http.HandlerFunc
	RequestDelete   http.HandlerFunc
	DeletePhoto     http.HandlerFunc

	// PageGuard redirects to the login page; APIGuard answers 401.
	PageGuard func(http.Handler) http.Handler
	APIGuard  func(http.Handler) http.Handler
}

func newRouter(rt routes, log *zap.Logger, port string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:" + port},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", gallery.ConfirmHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", rt.Health)
	r.Handle("/metrics", rt.Metrics)
	r.Handle("/swagger/*", rt.Swagger)
	r.Handle("/static/*", rt.Static)

	r.Get("/", rt.Home)
	r.Get(auth.LoginPath, rt.LoginPage)
	r.Post(auth.LoginPath, rt.Login)
	// Unguarded so a revoked or expired session cookie is still cleared.
	r.Post("/logout", rt.Logout)

	// Pages
	r.Group(func(r chi.Router) {
		r.Use(rt.PageGuard)
		r.Get(auth.PanelPath, rt.Panel)
	})

	// Fetched by the panel script, which needs a 401 rather than a
	// redirect it would silently follow to the login page.
	r.Group(func(r chi.Router) {
		r.Use(rt.APIGuard)
		r.Get(auth.PanelPath+"/gallery", rt.GalleryFragment)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.APIGuard)
		r.Route("/photos", func(r chi.Router) {
			r.Get("/", rt.ListPhotos)
			r.Post("/", rt.UploadPhotos)
			r.Post("/{id}/delete-request", rt.RequestDelete)
			r.Delete("/{id}", rt.DeletePhoto)
		})
	})
	return r
}
