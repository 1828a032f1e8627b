package db

import "embed"

// Migrations holds one directory of ordered .sql files per driver.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var Migrations embed.FS
