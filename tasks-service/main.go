package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/organism/internal/config"
	dbconn "github.com/chepyr/organism/internal/db"
	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/tasks-service/db"
	"github.com/chepyr/organism/tasks-service/handlers"
)

func main() {
	cfg := loadConfig()
	dbConn := initDB(cfg)
	defer dbConn.Close()

	handler := initHandlers(cfg, dbConn)
	server := initServer(cfg, handler)
	startServer(server)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := config.RequirePort("SERVER_PORT_TASKS", cfg.ServerPortTasks); err != nil {
		log.Fatal(err)
	}
	return cfg
}

func initDB(cfg *config.Config) *sql.DB {
	dbConn, err := dbconn.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dbconn.Migrate(ctx, dbConn, cfg.DBDriver); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	return dbConn
}

func initHandlers(cfg *config.Config, dbConn *sql.DB) *handlers.Handler {
	cal, err := cfg.Calendar()
	if err != nil {
		log.Fatalf("Invalid calendar settings: %v", err)
	}
	log.Printf("Bucketing in %s, weeks start on %s", cal.Location, cal.WeekStart)

	return &handlers.Handler{
		TaskRepo:       db.NewTaskRepository(dbConn),
		Users:          db.NewUserRepository(dbConn),
		RateLimiter:    shared.NewRateLimiter(5, time.Second),
		WSHub:          handlers.NewWSHub(),
		JWTSecret:      cfg.JWTSecret,
		Calendar:       cal,
		AllowedOrigins: cfg.Origins(),
	}
}

func initServer(cfg *config.Config, handler *handlers.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPortTasks,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startServer(server *http.Server) {
	log.Printf("Starting tasks server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
