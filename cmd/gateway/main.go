package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-qbank/internal/api/http"
	auth "github.com/mind-engage/mindengage-qbank/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/config"
	"github.com/mind-engage/mindengage-qbank/internal/db"
	"github.com/mind-engage/mindengage-qbank/internal/generation"
	"github.com/mind-engage/mindengage-qbank/internal/llm"
	"github.com/mind-engage/mindengage-qbank/internal/rbac"
	"github.com/mind-engage/mindengage-qbank/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	llm.SetVerbose(cfg.Verbose)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store bank.Store
		users auth.UserStore
		ping  func(context.Context) error
	)
	switch db.Driver(cfg.DBDriver) {
	case db.DriverMongo:
		mdb, err := db.OpenMongo(ctx, cfg.DBDSN, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("mongo open failed: %v", err)
		}
		store = bank.NewMongoStore(mdb)
		users = auth.NewMongoUsers(mdb)
		ping = func(ctx context.Context) error { return mdb.Client().Ping(ctx, nil) }
	default:
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		store = bank.NewSQLStore(dbh, cfg.DBDriver)
		users = auth.NewSQLUsers(dbh)
		ping = dbh.PingContext
	}

	if _, err := auth.SeedUser(ctx, users, cfg.AdminUser, cfg.AdminPassHash, rbac.RoleAdmin); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// --- Model ---
	model := llm.New(llm.Config{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	})
	if !model.Enabled() {
		log.Printf("OPENAI_API_KEY not set; generation is disabled")
	}

	bankOpts := bank.Options{Cascade: cfg.PassageDeletePolicy == config.DeleteCascade}
	if cfg.EnableAITitles && model.Enabled() {
		bankOpts.Titler = model
	}
	bankSvc := bank.NewService(store, bankOpts)

	var transcripts storage.BlobStore
	if cfg.EnableTranscripts {
		bs, err := storage.NewFSStore(cfg.BlobBasePath)
		if err != nil {
			log.Fatalf("blob store: %v", err)
		}
		transcripts = bs
	}
	gen := generation.NewService(bankSvc, model, generation.Options{Transcripts: transcripts})

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL, users)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	// generation waits on the model; leave it room to time out on its own
	r.Use(middleware.Timeout(cfg.OpenAITimeout + 15*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	// Protected API (JWT → stored role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRole(users, cfg.Mode == config.ModeOffline))
		api.Mount(pr, api.Deps{
			Bank:        bankSvc,
			Generator:   gen,
			Users:       users,
			Transcripts: transcripts,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			log.Printf("readyz: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("listening on %s (mode=%s, db=%s, model=%s, transcripts=%v)",
		cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, model.Model(), transcripts != nil)
	log.Fatal(srv.ListenAndServe())
}
