package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulse-data/venue.report/internal/api"
	"github.com/pulse-data/venue.report/internal/cache"
	"github.com/pulse-data/venue.report/internal/config"
	"github.com/pulse-data/venue.report/internal/db"
	"github.com/pulse-data/venue.report/internal/pulse"
	"github.com/pulse-data/venue.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "venue_data.db", "Path to the sqlite database")
	redisAddr  = flag.String("redis", "", "Redis address for the pulse cache (empty disables caching)")
	configPath = flag.String("config", "", "Path to a pulse tuning JSON file (empty uses built-in defaults)")
)

// rollupLoop periodically folds the just-completed hour of snapshots into
// the hourly pulse table for every venue.
func rollupLoop(ctx context.Context, database *db.DB, calc *pulse.Calculator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			venues, err := database.ListVenues()
			if err != nil {
				log.Printf("rollup: failed to list venues: %v", err)
				continue
			}
			prevHour := now.UTC().Add(-time.Hour)
			for _, v := range venues {
				if err := database.RollupHour(v.ID, prevHour, calc); err != nil {
					log.Printf("rollup: venue %d hour %v: %v", v.ID, prevHour, err)
				}
			}
		case <-ctx.Done():
			log.Print("rollup routine terminated")
			return
		}
	}
}

func main() {
	flag.Parse()

	log.Printf("venue.report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}
	calc := pulse.NewCalculator(tuning.Targets())

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheClient *cache.Client
	if *redisAddr != "" {
		cacheClient, err = cache.New(ctx, *redisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer cacheClient.Close()
	}

	// fold completed hours into the hourly pulse table in the background
	wg.Add(1)
	go func() {
		defer wg.Done()
		rollupLoop(ctx, database, calc, tuning.GetRollupInterval())
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the API handlers and the prometheus endpoint
		apiServer := api.NewServer(database, cacheClient, calc, nil)
		apiServer.SetAnomalyWindow(tuning.GetAnomalyWindowSamples(), tuning.GetAnomalyWindowAge())
		mux.Handle("/api/", apiServer.ServeMux())
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
