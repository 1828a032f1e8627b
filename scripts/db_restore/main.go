package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/VYBRANDMEDIA/nannygo/internal/config"
)

// Restores a SQLite backup over the configured database file. Stop the
// server first.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	in := flag.String("in", "", "Backup file (default <dsn>.bak)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "sqlite" {
		fmt.Fprintln(os.Stderr, "Restore error: only the sqlite driver is supported, use pg_restore for postgres")
		os.Exit(1)
	}
	src := *in
	if src == "" {
		src = cfg.Database.DSN + ".bak"
	}
	dst := cfg.Database.DSN

	srcFile, err := os.Open(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	// Stale WAL files would be replayed over the restored copy.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dst + suffix)
	}

	fmt.Println("Database restore completed.")
}
