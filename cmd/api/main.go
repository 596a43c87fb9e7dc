package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"littlelungs.org/internal/audit"
	"littlelungs.org/internal/config"
	"littlelungs.org/internal/directory"
	"littlelungs.org/internal/httpapi"
	"littlelungs.org/internal/identity"
	"littlelungs.org/internal/obs"
	"littlelungs.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	supported, err := store.DetectActiveFlag(ctx)
	cancel()
	if err != nil {
		log.Fatalf("probe profiles schema: %v", err)
	}
	if !supported {
		obs.Warn("profiles.is_active column missing, activation handling degraded", nil)
	}

	idp := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityServiceKey)
	users := directory.NewService(idp, store, store, cfg.SiteURL)
	recorder := audit.NewRecorder(store)

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, users, recorder,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSecond))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting littlelungs-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = store.Close()
	log.Println("Stopped")
}
