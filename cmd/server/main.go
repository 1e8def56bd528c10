package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finance-ledger-go/internal/ai"
	"finance-ledger-go/internal/budget"
	"finance-ledger-go/internal/config"
	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/email"
	httpserver "finance-ledger-go/internal/http"
	"finance-ledger-go/internal/identity"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/revalidate"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	defer database.Close(db)

	if cfg.AuthJWTSecret == "" {
		log.Println("AUTH_JWT_SECRET is empty, every request will be rejected")
	}

	loc, err := time.LoadLocation(cfg.TZDefault)
	if err != nil {
		log.Printf("unknown TZ_DEFAULT %q, using UTC", cfg.TZDefault)
		loc = time.UTC
	}

	scanner, err := ai.NewOpenAIClient(cfg)
	if err != nil {
		log.Fatal(err)
	}

	mailer, err := email.NewResendClient(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ldg := ledger.NewService(db, revalidate.LogNotifier{})
	r := httpserver.NewServer(cfg, httpserver.Deps{
		Ledger: ldg,
		Budget: budget.NewService(db, ldg, mailer,
			budget.WithAlertRatio(cfg.BudgetAlertRatio),
			budget.WithLocation(loc),
		),
		Identity: identity.NewJWTResolver(db, cfg.AuthJWTSecret, cfg.AuthIssuer),
		Scanner:  scanner,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	log.Println("Server stopped")
}
