package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"metabias/adapters/postgres"
	"metabias/adapters/sampler"
	"metabias/app"
	"metabias/internal/api"
	"metabias/internal/config"
	"metabias/internal/errors"
	"metabias/internal/migration"
	"metabias/internal/testkit"
	"metabias/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase connects to PostgreSQL and applies the schema
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appConfig.Sampler.URL == "" {
		log.Fatal("SAMPLER_URL is required to serve fits")
	}
	logger := appConfig.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fit store is optional
	var repo ports.FitRepository
	if appConfig.Database.URL != "" {
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewFitRepository(db)
		log.Println("Fit persistence enabled")
	} else {
		log.Println("DATABASE_URL not set, fits will not be stored")
	}

	client, err := sampler.NewClient(appConfig.Sampler.URL, appConfig.Sampler.Timeout)
	if err != nil {
		log.Fatalf("Failed to create sampler client: %v", err)
	}

	densityService, err := app.NewDensityService(appConfig.Densities(), &testkit.RNGAdapter{}, logger)
	if err != nil {
		log.Fatalf("Failed to create density service: %v", err)
	}
	fitService := app.NewMetaAnalysisService(client, repo, app.FitDefaults{
		Chains:     appConfig.Fit.Chains,
		Iterations: appConfig.Fit.Iterations,
		Workers:    appConfig.Numerics.Workers,
		SimplexTol: appConfig.Numerics.SimplexTol,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewServer(densityService, fitService, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting metabias API server on %s (sampler %s)", srv.Addr, appConfig.Sampler.URL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
