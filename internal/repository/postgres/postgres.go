package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Options tune the postgres store.
type Options struct {
	// RetryAttempts bounds how often a transaction is retried after a
	// serialization failure or deadlock.
	RetryAttempts int
	// ReturnProcedures are the server side return procedures to try, in order.
	ReturnProcedures []string
}

type Store struct {
	db *sql.DB
	repository.ItemRepository
	repository.RentalRepository
	repository.SaleRepository
	repository.SettingsRepository
	repository.SuitRepository
}

func NewStore(db *sql.DB, opts Options) *Store {
	tx := newTxRunner(db, opts.RetryAttempts)
	return &Store{
		db:                 db,
		ItemRepository:     NewItemRepository(db, tx),
		RentalRepository:   NewRentalRepository(db, tx, validProcedures(opts.ReturnProcedures)),
		SaleRepository:     NewSaleRepository(db, tx),
		SettingsRepository: NewSettingsRepository(db),
		SuitRepository:     NewSuitRepository(db, tx),
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Open connects with the "postgres" (lib/pq) or "pgx" driver and pings the server.
func Open(ctx context.Context, driver, dsn string, maxOpenConns int) (*sql.DB, error) {
	if driver != "postgres" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// validProcedures drops names that are not plain SQL identifiers, since they
// are interpolated into the call statement.
func validProcedures(names []string) []string {
	var out []string
	for _, name := range names {
		if !identifier.MatchString(name) {
			logger.Warn("Ignoring invalid return procedure name", "name", name)
			continue
		}
		out = append(out, name)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}
