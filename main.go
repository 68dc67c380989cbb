package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/deepthoughts/internal/config"
	"github.com/example/deepthoughts/internal/migrations"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type App struct {
	Store       Store
	Tokens      *TokenCodec
	Resolver    *Resolver
	Log         logrus.FieldLogger
	CORSOrigins []string
	rateLimiter *RateLimiter
}

// NewApp wires the resolver and middleware around store. A zero
// rateLimitPerMinute disables rate limiting.
func NewApp(store Store, tokens *TokenCodec, log logrus.FieldLogger, corsOrigins []string, rateLimitPerMinute int) *App {
	a := &App{
		Store:       store,
		Tokens:      tokens,
		Resolver:    NewResolver(store, tokens, log),
		Log:         log,
		CORSOrigins: corsOrigins,
	}
	if rateLimitPerMinute > 0 {
		a.rateLimiter = NewRateLimiter(rateLimitPerMinute)
	}
	return a
}

// Router builds the HTTP surface. Middleware order matters: Session must run
// before Logging so the log line carries the caller.
func (a *App) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.CORS)
	r.Use(a.RateLimit)
	r.Use(a.Session)
	r.Use(a.Logging)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/query", a.HandleQuery).Methods("POST")

	api.HandleFunc("/auth/login", a.HandleLogin).Methods("POST")
	api.HandleFunc("/auth/session", a.HandleSession).Methods("GET")

	api.HandleFunc("/users", a.HandleRegister).Methods("POST")
	api.HandleFunc("/users", a.HandleUsers).Methods("GET")
	api.HandleFunc("/users/{username}", a.HandleUser).Methods("GET")
	api.HandleFunc("/me", a.HandleMe).Methods("GET")
	api.HandleFunc("/me/friends/{friendId}", a.HandleAddFriend).Methods("POST")

	api.HandleFunc("/thoughts", a.HandleThoughts).Methods("GET")
	api.HandleFunc("/thoughts", a.HandleAddThought).Methods("POST")
	api.HandleFunc("/thoughts/{id}", a.HandleThought).Methods("GET")
	api.HandleFunc("/thoughts/{id}/reactions", a.HandleAddReaction).Methods("POST")

	// mux only runs middleware on matched routes; CORS answers preflights.
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return r
}

func newLogger(level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

func openStore(ctx context.Context, c *cfg.Config, log logrus.FieldLogger) (Store, error) {
	switch c.DBAdapter {
	case "mongo":
		s, err := NewMongoStore(ctx, c.MongoURI, c.MongoDB, log)
		if err != nil {
			return nil, fmt.Errorf("mongo init: %w", err)
		}
		log.WithField("database", c.MongoDB).Info("Connected to MongoDB")
		return s, nil
	case "postgres":
		log.Info("Applying database migrations...")
		from, to, err := migrations.Apply(c.MigrationsDir, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if from != to {
			log.Infof("Migrated from version %d to %d", from, to)
		} else {
			log.Infof("Database is up to date (version %d)", to)
		}
		p, err := NewPostgresStore(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		log.Info("Connected to PostgreSQL database")
		return p, nil
	case "sqlite":
		s, err := NewSQLiteStore(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		return s, nil
	case "memory":
		log.Warn("Using in-memory store (not recommended for production)")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s", c.DBAdapter)
	}
}

func main() {
	c, err := cfg.New()
	if err == nil {
		err = c.ValidateServer()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := newLogger(c.LogLevel, c.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	tokens, err := NewTokenCodec(c.JwtSecret, c.JwtTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := openStore(ctx, c, log)
	cancel()
	if err != nil {
		log.Fatal(err)
	}

	app := NewApp(store, tokens, log, c.CORSOrigins, c.RateLimitPerMinute)
	srv := &http.Server{Handler: app.Router(), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		log.WithField("port", c.Port).Info("API server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown failed: %+v", err)
	}
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("closing store")
	}
	log.Info("Server exited properly")
}
