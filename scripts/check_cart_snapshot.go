package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"
)

// Connects with the storefront's DB_* settings and prints the stored cart.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var dbName string
	if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully connected to database: %s\n", dbName)

	repo := repository.NewCartRepository(pool, cfg.Database.CartID, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Schema check failed: %v\n", err)
		os.Exit(1)
	}

	lines, err := repo.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nCart %q holds %d line(s):\n", cfg.Database.CartID, len(lines))
	for _, l := range lines {
		fmt.Printf("  - %s x%d @ %s\n", l.Name, l.Quantity, l.UnitPrice.StringFixed(2))
	}
}
