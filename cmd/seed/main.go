package main

// seed loads the product catalog from a YAML file into the database.

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/atacanet/storefront/internal/catalog"
	"github.com/atacanet/storefront/internal/db"
	"github.com/atacanet/storefront/internal/logging"
)

type seedConfig struct {
	DatabaseURL   string     `env:"DATABASE_URL,required"`
	RunMigrations bool       `env:"RUN_MIGRATIONS" envDefault:"true"`
	LogLevel      slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat     string     `env:"LOG_FORMAT" envDefault:"text"`
}

func main() {
	path := flag.String("file", "catalog.yaml", "path to the catalog seed file")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing to the database")
	flag.Parse()

	var cfg seedConfig
	if err := env.Parse(&cfg); err != nil && !*dryRun {
		fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(logger, cfg, *path, *dryRun); err != nil {
		logger.Error("seed failed", "error", err, "file", *path)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg seedConfig, path string, dryRun bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	file, err := catalog.NewParser().Parse(content)
	if err != nil {
		return err
	}
	validator := catalog.NewValidator()
	if err := validator.Validate(file); err != nil {
		return err
	}
	products, err := validator.Products(file)
	if err != nil {
		return err
	}

	if dryRun {
		logger.Info("seed file is valid", "store", file.Store.Name, "products", len(products))
		return nil
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := db.NewProductStore(pool)
	for _, product := range products {
		if err := store.Upsert(ctx, product); err != nil {
			return fmt.Errorf("failed to upsert product %d: %w", product.ID, err)
		}
		logger.Debug("product upserted", "product_id", product.ID, "name", product.Name)
	}

	logger.Info("catalog seeded", "store", file.Store.Name, "products", len(products))
	return nil
}
