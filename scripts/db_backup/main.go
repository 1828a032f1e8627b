package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/VYBRANDMEDIA/nannygo/internal/config"
	"github.com/VYBRANDMEDIA/nannygo/internal/db"
)

// Backs up the SQLite database with VACUUM INTO, which yields a consistent
// copy while the server keeps running. Postgres deployments use pg_dump.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	out := flag.String("out", "", "Backup file (default <dsn>.bak)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "sqlite" {
		fmt.Fprintln(os.Stderr, "Backup error: only the sqlite driver is supported, use pg_dump for postgres")
		os.Exit(1)
	}
	dst := *out
	if dst == "" {
		dst = cfg.Database.DSN + ".bak"
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if _, err := database.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database backup completed: %s\n", dst)
}
