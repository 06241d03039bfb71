package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tenancy-billing/internal/billing/application"
	billing "tenancy-billing/internal/billing/domain"
	billingrepo "tenancy-billing/internal/billing/infrastructure/postgres"
	billinginterfaces "tenancy-billing/internal/billing/interfaces"
	"tenancy-billing/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	env := loadEnv()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", env.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	if env.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Printf("metrics listening on %s", env.MetricsAddr)
			if err := http.ListenAndServe(env.MetricsAddr, mux); err != nil {
				logger.Printf("metrics server error: %v", err)
			}
		}()
	}

	source := billingrepo.NewSnapshotRepository(db, billingrepo.WithReadingLookback(cfg.ReadingLookback))
	sink := billingrepo.NewRunRepository(db)
	service, err := application.NewRunService(source, sink, cfg)
	if err != nil {
		logger.Fatalf("run service error: %v", err)
	}

	started := time.Now()
	result, err := service.Run(context.Background(), env.BuildingID, billing.PeriodID(env.PeriodID))
	if err != nil {
		metrics.ObserveRun(metrics.ResultError, time.Since(started))
		logger.Fatalf("billing run error: %v", err)
	}
	metrics.ObserveRun(metrics.ResultSuccess, time.Since(started))

	logger.Printf("run finished: building=%s period=%s bills=%d anomalies=%d failures=%d",
		result.BuildingID, result.Period.ID, len(result.Bills), len(result.Anomalies), len(result.Failures))
	for _, failure := range result.Failures {
		logger.Printf("booking %s skipped: %v", failure.BookingID, failure.Err)
	}

	if env.OutDir != "" {
		if err := exportRun(env.OutDir, result, cfg.Currency); err != nil {
			logger.Fatalf("export error: %v", err)
		}
		logger.Printf("exports written to %s", env.OutDir)
	}
}

func exportRun(dir string, result *application.RunResult, currency string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	period := result.Period

	for i := range result.Bills {
		bill := &result.Bills[i]
		started := time.Now()
		data, err := billinginterfaces.BuildBillPDF(bill, period, currency)
		if err != nil {
			metrics.ObserveExport("pdf", metrics.ResultError, time.Since(started))
			return err
		}
		name := filepath.Join(dir, "bill-"+string(bill.ApartmentID)+".pdf")
		if err := os.WriteFile(name, data, 0o644); err != nil {
			metrics.ObserveExport("pdf", metrics.ResultError, time.Since(started))
			return err
		}
		metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(started))
	}

	started := time.Now()
	data, err := billinginterfaces.BuildRunXLSX(result)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(started))
		return err
	}
	name := filepath.Join(dir, "run-"+string(result.Period.ID)+".xlsx")
	if err := os.WriteFile(name, data, 0o644); err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(started))
		return err
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(started))
	return nil
}

type env struct {
	DatabaseURL string
	BuildingID  string
	PeriodID    string
	OutDir      string
	MetricsAddr string
}

func loadEnv() env {
	e := env{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		BuildingID:  os.Getenv("BUILDING_ID"),
		PeriodID:    os.Getenv("PERIOD_ID"),
		OutDir:      getenvDefault("OUT_DIR", ""),
		MetricsAddr: getenvDefault("METRICS_ADDR", ""),
	}
	if e.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if e.BuildingID == "" {
		log.Fatal("BUILDING_ID is required")
	}
	if e.PeriodID == "" {
		log.Fatal("PERIOD_ID is required")
	}
	return e
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
