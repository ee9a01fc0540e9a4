package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/repository"
)

const itemColumns = `id, code, name, type, size, color, rental_price, sale_price,
	total, available, rented, in_maintenance, sold, lost, available_at, created_on, updated_on, deleted_on`

var counterColumns = map[domain.CounterKind]string{
	domain.CounterAvailable:   "available",
	domain.CounterRented:      "rented",
	domain.CounterMaintenance: "in_maintenance",
	domain.CounterSold:        "sold",
	domain.CounterLost:        "lost",
}

type itemRepository struct {
	db *sql.DB
	tx *txRunner
}

func NewItemRepository(db *sql.DB, tx *txRunner) repository.ItemRepository {
	return &itemRepository{db: db, tx: tx}
}

func scanItem(row rowScanner) (*domain.Item, error) {
	it := &domain.Item{}
	err := row.Scan(&it.ID, &it.Code, &it.Name, &it.Type, &it.Size, &it.Color, &it.RentalPrice, &it.SalePrice,
		&it.Total, &it.Available, &it.Rented, &it.InMaintenance, &it.Sold, &it.Lost,
		&it.AvailableAt, &it.CreatedOn, &it.UpdatedOn, &it.DeletedOn)
	if err != nil {
		return nil, err
	}
	it.SyncStatus()
	return it, nil
}

func scanItems(rows *sql.Rows) ([]domain.Item, error) {
	defer rows.Close()
	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// lockItem reads an item with a row lock held until the transaction ends.
func lockItem(ctx context.Context, tx *sql.Tx, id int64, includeDeleted bool) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_on IS NULL`
	}
	query += ` FOR UPDATE`

	it, err := scanItem(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock item %d: %w", id, err)
	}
	return it, nil
}

// writeItem persists every mutable column of a locked item after checking
// the counter invariant.
func writeItem(ctx context.Context, tx *sql.Tx, it *domain.Item, now time.Time) error {
	if err := it.Validate(); err != nil {
		return err
	}
	it.SyncStatus()
	it.UpdatedOn = now
	query := `UPDATE items SET name = $1, type = $2, size = $3, color = $4, rental_price = $5, sale_price = $6,
	          total = $7, available = $8, rented = $9, in_maintenance = $10, sold = $11, lost = $12,
	          status = $13, available_at = $14, deleted_on = $15, updated_on = $16 WHERE id = $17`
	_, err := tx.ExecContext(ctx, query, it.Name, it.Type, it.Size, it.Color, it.RentalPrice, it.SalePrice,
		it.Total, it.Available, it.Rented, it.InMaintenance, it.Sold, it.Lost,
		string(it.Status), it.AvailableAt, it.DeletedOn, now, it.ID)
	if err != nil {
		return fmt.Errorf("update item %d: %w", it.ID, err)
	}
	return nil
}

func insertMovement(ctx context.Context, tx *sql.Tx, m *domain.StockMovement) error {
	query := `INSERT INTO stock_movements (item_id, kind, quantity, rental_id, sale_id, note, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := tx.QueryRowContext(ctx, query, m.ItemID, string(m.Kind), m.Quantity, m.RentalID, m.SaleID, m.Note, m.CreatedOn).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (r *itemRepository) Create(ctx context.Context, it *domain.Item) error {
	logger.EnterMethod("itemRepository.Create", "code", it.Code)
	if err := it.Validate(); err != nil {
		return err
	}
	it.SyncStatus()

	query := `INSERT INTO items (code, name, type, size, color, rental_price, sale_price,
	          total, available, rented, in_maintenance, sold, lost, status, available_at, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17) RETURNING id`
	logger.DatabaseCall("INSERT", "items")
	err := r.db.QueryRowContext(ctx, query, it.Code, it.Name, it.Type, it.Size, it.Color, it.RentalPrice, it.SalePrice,
		it.Total, it.Available, it.Rented, it.InMaintenance, it.Sold, it.Lost,
		string(it.Status), it.AvailableAt, it.CreatedOn, it.UpdatedOn).Scan(&it.ID)
	if hasCode(err, codeUniqueViolation) {
		return domain.NewValidationError("code", "item code %q already exists", it.Code)
	}
	logger.DatabaseResult("INSERT", 1, err)
	if err != nil {
		return err
	}
	logger.ExitMethod("itemRepository.Create", "id", it.ID)
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND deleted_on IS NULL`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("item", id)
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (r *itemRepository) List(ctx context.Context) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE deleted_on IS NULL ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (r *itemRepository) ListByCounter(ctx context.Context, kind domain.CounterKind) ([]domain.Item, error) {
	col, ok := counterColumns[kind]
	if !ok {
		return nil, domain.NewValidationError("counter", "unknown counter %q", kind)
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE deleted_on IS NULL AND ` + col + ` > 0 ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (r *itemRepository) Mutate(ctx context.Context, id int64, fn repository.ItemMutation) (*domain.Item, error) {
	logger.EnterMethod("itemRepository.Mutate", "id", id)
	var result *domain.Item
	err := r.tx.run(ctx, "itemRepository.Mutate", func(tx *sql.Tx) error {
		it, err := lockItem(ctx, tx, id, false)
		if err != nil {
			return err
		}
		movement, err := fn(it)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := writeItem(ctx, tx, it, now); err != nil {
			return err
		}
		if movement != nil {
			movement.ItemID = it.ID
			movement.CreatedOn = now
			if err := insertMovement(ctx, tx, movement); err != nil {
				return err
			}
		}
		result = it
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("itemRepository.Mutate", err, "id", id)
		return nil, err
	}
	logger.ExitMethod("itemRepository.Mutate", "id", id)
	return result, nil
}

func (r *itemRepository) Delete(ctx context.Context, id int64) error {
	return r.tx.run(ctx, "itemRepository.Delete", func(tx *sql.Tx) error {
		it, err := lockItem(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if it.Rented > 0 {
			return domain.NewValidationError("item", "item %d has %d units rented out", id, it.Rented)
		}
		now := time.Now().UTC()
		it.DeletedOn = &now
		return writeItem(ctx, tx, it, now)
	})
}

func (r *itemRepository) DeleteExhausted(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `UPDATE items SET deleted_on = $1, updated_on = $1
	          WHERE id = ANY($2) AND deleted_on IS NULL AND total - sold - lost <= 0 RETURNING id`
	logger.DatabaseCall("UPDATE", "items.deleted_on", "ids", ids)
	rows, err := r.db.QueryContext(ctx, query, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return nil, err
	}
	defer rows.Close()

	var deleted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	logger.DatabaseResult("UPDATE", int64(len(deleted)), rows.Err())
	return deleted, rows.Err()
}

func (r *itemRepository) Summary(ctx context.Context) (*domain.InventorySummary, error) {
	s := &domain.InventorySummary{}
	query := `SELECT
	            COUNT(*) FILTER (WHERE available > 0),
	            COUNT(*) FILTER (WHERE rented > 0),
	            COUNT(*) FILTER (WHERE in_maintenance > 0),
	            COUNT(*) FILTER (WHERE sold > 0),
	            COUNT(*) FILTER (WHERE lost > 0),
	            COUNT(*)
	          FROM items WHERE deleted_on IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Available, &s.Rented, &s.InMaintenance, &s.Sold, &s.Lost, &s.Total)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *itemRepository) ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]int64, error) {
	var released []int64
	err := r.tx.run(ctx, "itemRepository.ReleaseExpiredHolds", func(tx *sql.Tx) error {
		released = nil
		query := `SELECT ` + itemColumns + ` FROM items
		          WHERE deleted_on IS NULL AND in_maintenance > 0 AND available_at IS NOT NULL AND available_at <= $1
		          ORDER BY id FOR UPDATE SKIP LOCKED`
		rows, err := tx.QueryContext(ctx, query, now)
		if err != nil {
			return err
		}
		items, err := scanItems(rows)
		if err != nil {
			return err
		}

		for i := range items {
			it := &items[i]
			moved, err := it.TakeOutOfMaintenance(0)
			if err != nil {
				return err
			}
			if err := writeItem(ctx, tx, it, now); err != nil {
				return err
			}
			m := &domain.StockMovement{ItemID: it.ID, Kind: domain.MovementMaintenanceOut, Quantity: moved, Note: "maintenance hold expired", CreatedOn: now}
			if err := insertMovement(ctx, tx, m); err != nil {
				return err
			}
			released = append(released, it.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *itemRepository) ListMovements(ctx context.Context, itemID int64) ([]domain.StockMovement, error) {
	query := `SELECT id, item_id, kind, quantity, rental_id, sale_id, COALESCE(note, ''), created_on
	          FROM stock_movements WHERE item_id = $1 ORDER BY created_on DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		var kind string
		if err := rows.Scan(&m.ID, &m.ItemID, &kind, &m.Quantity, &m.RentalID, &m.SaleID, &m.Note, &m.CreatedOn); err != nil {
			return nil, err
		}
		m.Kind = domain.MovementKind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
