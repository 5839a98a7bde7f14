package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warekiosk/kioskgo/internal/checkout"
	"github.com/warekiosk/kioskgo/internal/config"
	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/handlers"
	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/notify"
	"github.com/warekiosk/kioskgo/internal/realtime"
	"github.com/warekiosk/kioskgo/internal/session"
	"github.com/warekiosk/kioskgo/internal/store"
	"github.com/warekiosk/kioskgo/internal/telemetry"
	"github.com/warekiosk/kioskgo/internal/utils"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Scanner{},
		&models.Transaction{},
		&models.ScanEvent{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. In-memory session state and realtime hub
	repo := store.New(db)
	bindings := session.NewBindingRegistry(repo)
	presence := session.NewPresenceTracker()
	carts := session.NewCartStore()

	hub := realtime.NewHub(presence)
	go hub.Run()

	// 5. Scan resolution pipeline fed by the device message queue
	issuer := utils.Issuer{Secret: cfg.JWTSecret}
	resolver := telemetry.NewResolver(repo, repo, repo, bindings, presence, carts, hub, issuer, repo)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go func() {
		if err := telemetry.StartConsumer(consumerCtx, cfg.Telemetry, resolver); err != nil {
			log.Printf("⚠️ Scan consumer stopped: %v", err)
		}
	}()

	// 6. Commit coordinator and HTTP router
	coordinator := checkout.NewCoordinator(db, carts, repo, hub)
	router := handlers.NewRouter(db, cfg, hub, carts, bindings, coordinator)

	// 7. Overdue reminder loop (needs a configured mail relay)
	if cfg.Mail.RelayURL != "" {
		mailer := notify.NewRelayMailer(cfg.Mail)
		overdue := notify.NewOverdueNotifier(db, mailer, cfg.Mail.OverdueDays)
		go overdue.Run(consumerCtx)
	} else {
		log.Println("📧 MAIL_RELAY_URL not set, overdue reminders disabled")
	}

	// 8. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	stopConsumer()

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
