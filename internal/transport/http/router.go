package http

import (
	"net/http"

	"github.com/cardvault-api/internal/application/auth"
	"github.com/cardvault-api/internal/application/card"
	"github.com/cardvault-api/internal/application/signup"
	"github.com/cardvault-api/internal/config"
	"github.com/cardvault-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/cardvault-api/internal/infrastructure/jwt"
	"github.com/cardvault-api/internal/infrastructure/smtp"
	"github.com/cardvault-api/internal/infrastructure/sns"
	"github.com/cardvault-api/internal/pkg/fieldcrypt"
	"github.com/cardvault-api/internal/transport/http/handler"
	appmiddleware "github.com/cardvault-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      *dynamo.UserRepo
	CardRepo      *dynamo.CardRepo
	Mailer        smtp.Mailer
	PhoneVerifier sns.PhoneVerifier
	JWTProvider   *jwtinfra.Provider
	Codec         *fieldcrypt.Codec
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10 — applied to the public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	signupSvc := signup.NewService(signup.ServiceDeps{
		Users:    deps.UserRepo,
		Verifier: deps.PhoneVerifier,
		Mailer:   deps.Mailer,
		Signer:   deps.JWTProvider,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:    deps.UserRepo,
		Cards:    deps.CardRepo,
		Verifier: deps.PhoneVerifier,
		Mailer:   deps.Mailer,
		Signer:   deps.JWTProvider,
	})
	cardSvc := card.NewService(deps.CardRepo, deps.Codec)

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(signupSvc, authSvc)
	cardH := handler.NewCardHandler(cardSvc)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/users", func(r chi.Router) {
			// ── Public routes (no auth) ──────────────────────────────────
			r.With(sensitiveRL.Limit).Post("/signup", userH.Signup)
			r.With(sensitiveRL.Limit).Post("/login", userH.Login)
			r.With(sensitiveRL.Limit).Post("/forget-pin", userH.ForgetPIN)

			// ── Authenticated routes ─────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(authMw)
				r.Delete("/account", userH.DeleteAccount)
			})
		})

		r.Route("/cards", func(r chi.Router) {
			r.Use(authMw)
			r.Get("/", cardH.List)
			r.Post("/", cardH.Create)
			r.Get("/{lastFourDigits}", cardH.Get)
			r.Put("/{lastFourDigits}", cardH.Update)
			r.Delete("/{lastFourDigits}", cardH.Delete)
		})
	})

	return r
}
