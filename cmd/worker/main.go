package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/rentalwatch/config"
	"github.com/Domenick1991/rentalwatch/internal/audit"
	"github.com/Domenick1991/rentalwatch/internal/email"
	"github.com/Domenick1991/rentalwatch/internal/kafka"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/Domenick1991/rentalwatch/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	history := flag.Int64("history", 0, "print the stored phase changes of this booking and exit")
	limit := flag.Int("limit", 50, "number of records printed with -history")
	flag.Parse()

	if err := run(*history, *limit); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource so its deferred cleanups finish before main exits.
func run(history int64, limit int) error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg := logger.New(cfg.ServiceName+"-worker", cfg.Logger.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repository.Migrate(cfg.Database.URL()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	processor := audit.NewProcessor(repository.NewPhaseLogRepository(pool), email.NewSender(lg), lg)

	if history > 0 {
		return printHistory(ctx, os.Stdout, processor, history, limit)
	}

	if !cfg.Kafka.Enabled() {
		return errors.New("kafka.brokers and kafka.phase_topic are required for the worker")
	}
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PhaseTopic, lg)
	defer consumer.Close()

	lg.Info("consuming phase events", logger.String("topic", cfg.Kafka.PhaseTopic))
	err = consumer.ConsumePhases(ctx, processor.Handle)
	if err != nil && ctx.Err() == nil {
		lg.Error("consumer stopped", logger.Error(err))
		return fmt.Errorf("consume phase events: %w", err)
	}
	lg.Info("worker stopped")
	return nil
}

type historySource interface {
	History(ctx context.Context, bookingID int64, limit int) ([]repository.PhaseRecord, error)
}

func printHistory(ctx context.Context, w io.Writer, src historySource, bookingID int64, limit int) error {
	records, err := src.History(ctx, bookingID, limit)
	if err != nil {
		return fmt.Errorf("booking %d history: %w", bookingID, err)
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "booking %d: no phase changes recorded\n", bookingID)
		return nil
	}
	for _, rec := range records {
		prev := string(rec.Event.PreviousPhase)
		if prev == "" {
			prev = "-"
		}
		fmt.Fprintf(w, "%s  %-22s -> %-22s status=%s remaining=%ds\n",
			rec.Event.ObservedAt.UTC().Format("2006-01-02T15:04:05Z"),
			prev, rec.Event.Phase, rec.Event.Status, rec.Event.RemainingSeconds)
	}
	return nil
}
