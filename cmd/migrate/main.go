// ABOUTME: Standalone Postgres migration utility for deploy pipelines
// ABOUTME: Applies the embedded schema migrations without loading the full CLI config

package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/db/migrate"
)

func main() {
	dsn := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL (defaults to $DATABASE_URL)")
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	dryRun := flag.Bool("dry-run", false, "List the migrations that would run without applying them")
	flag.Parse()

	if *dryRun {
		files, err := pending(*direction)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	if err := migrate.Run(*dsn, *direction); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Printf("Migration %s completed successfully", *direction)
}

// pending lists the embedded migration files for direction in the order they apply.
func pending(direction string) ([]string, error) {
	if direction != migrate.Up && direction != migrate.Down {
		return nil, fmt.Errorf("direction must be up or down, got %q", direction)
	}

	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	suffix := "." + direction + ".sql"
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}

	if direction == migrate.Down {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	return files, nil
}
