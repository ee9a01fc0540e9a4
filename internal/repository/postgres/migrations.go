package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"penguin-ternos-backend/internal/logger"
)

// RunMigrations applies every .sql file in dir in lexical order. The files
// are written to be idempotent, so they run on every start.
func RunMigrations(ctx context.Context, db *sql.DB, dir string) error {
	if dir == "" {
		return fmt.Errorf("migrations directory not specified")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		logger.Warn("No migration files found", "dir", dir)
		return nil
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		logger.Info("Applied migration", "file", name)
	}
	return nil
}
