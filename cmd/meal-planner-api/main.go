package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-planner-api/internal/account"
	"meal-planner-api/internal/config"
	"meal-planner-api/internal/database"
	"meal-planner-api/internal/generator"
	"meal-planner-api/internal/httpapi"
	"meal-planner-api/internal/llm"
	"meal-planner-api/internal/metrics"
	"meal-planner-api/internal/planner"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. Initialize Infrastructure
	textGen, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	if closer, ok := textGen.(llm.Closer); ok {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 3. Initialize Repositories and Services
	accounts := account.NewRepository(db.SQL)
	planStore := planner.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	planGenerator := generator.New(textGen, metricsStore)
	scheduler := planner.NewScheduler(planStore, planGenerator, cfg.PlanWindowCapacity, cfg.GeneratorBatchDays)

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.NewServer(scheduler, accounts),
	}

	go func() {
		log.Printf("Meal planner API listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
