package main

import (
	"context"
	"log"
	"os"

	"github.com/northbridge/tenderops/internal/alerts"
	"github.com/northbridge/tenderops/internal/analytics"
	"github.com/northbridge/tenderops/internal/api"
	"github.com/northbridge/tenderops/internal/auth"
	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/pipeline"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	cfg, err := alerts.LoadConfig()
	if err != nil {
		log.Printf("Alerting config fallback: %v", err)
	}

	tenders := db.NewTenderStore(pool)
	alertStore := db.NewAlertStore(pool)

	transports := alerts.NewTransports(cfg.DeliveryTimeout())
	dispatcher := alerts.NewDispatcher(alertStore, transports, cfg)
	engine := alerts.NewEngine(alertStore, tenders, dispatcher, cfg)
	escalator := alerts.NewEscalator(alertStore, dispatcher)
	flusher := alerts.NewDigestFlusher(alertStore, transports, cfg)

	alerts.NewScheduler(engine, escalator, flusher, cfg).Start(ctx)

	srv := api.NewServer(api.Deps{
		Tenders:   tenders,
		Alerts:    alertStore,
		Pipeline:  pipeline.NewService(tenders),
		Engine:    engine,
		Escalator: escalator,
		Flusher:   flusher,
		Reporter:  analytics.NewReporter(alertStore, cfg.SLATarget()),
		Auth:      auth.NewService(pool),
	})

	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
