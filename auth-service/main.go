package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chepyr/organism/auth-service/db"
	"github.com/chepyr/organism/auth-service/handlers"
	"github.com/chepyr/organism/internal/config"
	dbconn "github.com/chepyr/organism/internal/db"
	"github.com/chepyr/organism/internal/mailer"
	"github.com/chepyr/organism/internal/scheduler"
	"github.com/chepyr/organism/shared"
)

func main() {
	cfg := loadConfig()
	dbConn := initDB(cfg)

	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()

	repo := db.NewUserRepository(dbConn)
	initHandlers(cfg, repo)

	jobs := initScheduler(cfg, repo)
	jobs.Start()
	defer jobs.Stop()

	server := initServer(cfg)
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
	if err := config.RequirePort("SERVER_PORT", cfg.ServerPort); err != nil {
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

func initMailer(cfg *config.Config) mailer.Sender {
	if !cfg.MailEnabled() {
		if cfg.MailLogBody {
			log.Println("WARNING: SMTP_HOST is not set and MAIL_LOG_BODY is on, verification and restoration links will be written to the log")
		} else {
			log.Println("WARNING: SMTP_HOST is not set, emails will not be delivered")
		}
		return mailer.LogSender{ShowBody: cfg.MailLogBody}
	}
	sender, err := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if err != nil {
		log.Fatalf("Failed to set up mailer: %v", err)
	}
	return sender
}

func initHandlers(cfg *config.Config, repo *db.UserRepository) {
	handler := &handlers.Handler{
		UserRepo: repo,
		// each action allows 5 attempts per 15 minutes from the same IP
		RateLimiters: map[string]*shared.RateLimiter{
			handlers.ActionLogin:       shared.NewRateLimiter(5, 15*time.Minute),
			handlers.ActionRegister:    shared.NewRateLimiter(5, 15*time.Minute),
			handlers.ActionRestoration: shared.NewRateLimiter(5, 15*time.Minute),
		},
		Mailer:       initMailer(cfg),
		JWTSecret:    cfg.JWTSecret,
		BaseURL:      cfg.BaseURL,
		TokenTTL:     time.Duration(cfg.TokenTTLHours) * time.Hour,
		SecureCookie: strings.HasPrefix(cfg.BaseURL, "https:"),
	}
	http.HandleFunc("/register", handler.Register)
	http.HandleFunc("/verify", handler.Verify)
	http.HandleFunc("/login", handler.Login)
	http.HandleFunc("/logout", handler.Logout)
	http.HandleFunc("/forgot", handler.Forgot)
	http.HandleFunc("/restore", handler.Restore)
	http.HandleFunc("/account/password", handler.ChangePassword)
	http.HandleFunc("/session", handler.Session)
}

func initScheduler(cfg *config.Config, repo *db.UserRepository) *scheduler.Scheduler {
	cal, _ := cfg.Calendar()
	jobs := scheduler.New(cal.Location)
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if _, err := jobs.Schedule("@hourly", scheduler.PurgeTokensJob(repo, ttl, nil)); err != nil {
		log.Fatalf("Failed to schedule token purge: %v", err)
	}
	return jobs
}

func initServer(cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startServer(server *http.Server) {
	log.Printf("Starting server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
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
