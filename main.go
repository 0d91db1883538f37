// Command libcat runs the library catalogue API server.
// It initializes configuration, the JSON file store, the services and the
// HTTP router, and serves until interrupted, shutting down gracefully.
//
// @title Library Catalogue API
// @version 1.0
// @description REST API for managing authors, books and loans.
// @BasePath /
// @securityDefinitions.apikey TokenAuth
// @in header
// @name Authorization
// @description Type 'Token YOUR_TOKEN' to authorize
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/catalog"
	"github.com/user/libcat-go/config"
	"github.com/user/libcat-go/loans"
	"github.com/user/libcat-go/ratelimit"
	"github.com/user/libcat-go/store"
)

func main() {
	// .env is a development convenience; in production the variables are
	// set directly.
	if err := godotenv.Load(); err != nil {
		logrus.Debugf(".env file not loaded: %v", err)
	}

	log := newLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The store owns the data directory and the lock that serializes every
	// load-modify-save sequence. All collections hang off it.
	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	log.WithField("data_dir", st.Dir()).Info("store initialized")

	// Services carry the business logic; handlers stay thin. Dependencies
	// are injected explicitly through the constructors.
	authService := auth.NewService(st, *cfg.Auth, log)
	authHandlers := auth.NewHandlers(authService)

	catalogService := catalog.NewService(st, log)
	catalogHandlers := catalog.NewHandlers(catalogService, *cfg.Query)

	loanService := loans.NewService(st, catalogService.Books(), *cfg.Loans, log)
	loanHandlers := loans.NewHandlers(loanService, *cfg.Query)

	limiter := ratelimit.New(*cfg.RateLimit)
	defer limiter.Stop()

	r := chi.NewRouter()

	// Global middleware. Chi requires all middleware to be registered
	// before any routes.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// The documented endpoint paths carry trailing slashes; StripSlashes
	// lets both spellings reach the same route.
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Panic recovery that formats the failure with the apperror envelope
	// instead of a bare 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Errorf("panic: %+v", rvr)
					auth.WriteError(ww, r, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		auth.WriteError(w, r, apperror.NewNotFoundError("not found", nil))
	})

	requireToken := auth.TokenMiddleware(authService)
	optionalToken := auth.OptionalTokenMiddleware(authService)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandlers.HandleRegister())
			r.Post("/login", authHandlers.HandleLogin())
			// Logout resolves the token itself so that revoking an
			// already-invalid token reports the same 401 as any other
			// invalid-token use.
			r.Post("/logout", authHandlers.HandleLogout())
		})

		r.Route("/authors", func(r chi.Router) {
			// Reads are public; a supplied token is still resolved.
			r.With(optionalToken).Get("/", catalogHandlers.HandleListAuthors())
			r.With(optionalToken).Get("/{id}", catalogHandlers.HandleGetAuthor())

			r.Group(func(r chi.Router) {
				r.Use(requireToken)
				r.Post("/", catalogHandlers.HandleCreateAuthor())
				r.Put("/{id}", catalogHandlers.HandleUpdateAuthor())
				r.Patch("/{id}", catalogHandlers.HandleUpdateAuthor())
				r.Delete("/{id}", catalogHandlers.HandleDeleteAuthor())
			})
		})

		r.Route("/books", func(r chi.Router) {
			r.With(optionalToken).Get("/", catalogHandlers.HandleListBooks())
			r.With(optionalToken).Get("/{id}", catalogHandlers.HandleGetBook())

			r.Group(func(r chi.Router) {
				r.Use(requireToken)
				r.Post("/", catalogHandlers.HandleCreateBook())
				r.Put("/{id}", catalogHandlers.HandleUpdateBook())
				r.Patch("/{id}", catalogHandlers.HandleUpdateBook())
				r.Delete("/{id}", catalogHandlers.HandleDeleteBook())
			})
		})

		r.Route("/loans", func(r chi.Router) {
			r.Use(requireToken)
			r.Post("/borrow", loanHandlers.HandleBorrow())
			r.Post("/return", loanHandlers.HandleReturn())
			r.Get("/mine", loanHandlers.HandleListMine())
			r.Get("/", loanHandlers.HandleListAll())
			r.Get("/{id}", loanHandlers.HandleGet())
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Every mutation is persisted synchronously inside its request, so
	// shutdown only has to drain in-flight requests.
	log.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Info("Server stopped gracefully")
}

// newLogger builds the application logger. The level comes from
// LIBCAT_LOG_LEVEL (default info).
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if raw, ok := os.LookupEnv("LIBCAT_LOG_LEVEL"); ok {
		if level, err := logrus.ParseLevel(raw); err == nil {
			log.SetLevel(level)
		} else {
			log.Warnf("invalid LIBCAT_LOG_LEVEL %q, using info", raw)
		}
	}
	return log
}
