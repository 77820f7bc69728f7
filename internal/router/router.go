package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vidstream/vidstream/internal/api/auth"
	"github.com/vidstream/vidstream/internal/api/channel"
	"github.com/vidstream/vidstream/internal/api/video"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	AuthHandler    *auth.AuthHandler
	ChannelHandler *channel.ChannelHandler
	VideoHandler   *video.VideoHandler

	// Authenticate rejects requests without a valid access token;
	// OptionalAuthenticate attaches the identity when one is present.
	Authenticate         func(http.Handler) http.Handler
	OptionalAuthenticate func(http.Handler) http.Handler

	AllowedOrigins []string
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/users", func(r chi.Router) {
			// Public auth routes
			r.Group(func(r chi.Router) {
				r.Post("/register", cfg.AuthHandler.Register)
				r.Post("/login", cfg.AuthHandler.Login)
				r.Post("/refresh-token", cfg.AuthHandler.Refresh)
				r.Post("/oauth/{provider}", cfg.AuthHandler.OAuthSignIn)
			})

			// Channel profile is public but personalizes the is-subscribed
			// flag for signed-in viewers.
			r.Group(func(r chi.Router) {
				r.Use(cfg.OptionalAuthenticate)
				r.Get("/c/{username}", cfg.ChannelHandler.GetChannelProfile)
			})

			// Secured routes
			r.Group(func(r chi.Router) {
				r.Use(cfg.Authenticate)
				r.Post("/logout", cfg.AuthHandler.Logout)
				r.Post("/change-password", cfg.AuthHandler.ChangePassword)
				r.Get("/current-user", cfg.AuthHandler.CurrentUser)
				r.Patch("/update-account", cfg.AuthHandler.UpdateAccount)
				r.Patch("/avatar", cfg.AuthHandler.UpdateAvatar)
				r.Patch("/cover-image", cfg.AuthHandler.UpdateCoverImage)
				r.Get("/history", cfg.ChannelHandler.GetWatchHistory)
				r.Post("/c/{username}/subscribe", cfg.ChannelHandler.ToggleSubscription)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(cfg.OptionalAuthenticate)
				r.Get("/{videoID}", cfg.VideoHandler.GetVideo)
			})
			r.Group(func(r chi.Router) {
				r.Use(cfg.Authenticate)
				r.Post("/", cfg.VideoHandler.Publish)
			})
		})
	})

	return r
}
