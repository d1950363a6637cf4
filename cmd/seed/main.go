// Command seed loads a symptom/prognosis CSV into the configured knowledge
// base, one document per disease.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"triage-agent/internal/bootstrap"
	"triage-agent/internal/config"
	"triage-agent/internal/dataset"
)

func main() {
	path := flag.String("csv", "Training.csv", "path to the training CSV")
	flag.Parse()

	if err := run(context.Background(), *path); err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateKnowledge(); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	docs, err := dataset.ParseTrainingCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	awsCfg, err := bootstrap.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	kb, closer, err := bootstrap.NewKnowledgeBase(ctx, cfg, awsCfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	if err := kb.PutDocuments(ctx, docs); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}
	slog.Info("knowledge base seeded", "backend", cfg.KnowledgeBackend, "documents", len(docs))
	return nil
}
