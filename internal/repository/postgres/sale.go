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

const saleSelect = `SELECT id, customer_id, total, COALESCE(payment_method, ''), COALESCE(notes, ''), status,
	return_date, created_on, updated_on FROM sales`

type saleRepository struct {
	db *sql.DB
	tx *txRunner
}

func NewSaleRepository(db *sql.DB, tx *txRunner) repository.SaleRepository {
	return &saleRepository{db: db, tx: tx}
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	s := &domain.Sale{}
	var status string
	err := row.Scan(&s.ID, &s.CustomerID, &s.Total, &s.PaymentMethod, &s.Notes, &status, &s.ReturnDate, &s.CreatedOn, &s.UpdatedOn)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SaleStatus(status)
	return s, nil
}

func (r *saleRepository) Create(ctx context.Context, s *domain.Sale) error {
	logger.EnterMethod("saleRepository.Create", "units", len(s.Lines))
	if len(s.Lines) == 0 {
		return domain.NewValidationError("items", "a sale needs at least one unit")
	}

	err := r.tx.run(ctx, "saleRepository.Create", func(tx *sql.Tx) error {
		now := time.Now().UTC()
		units := s.UnitsPerItem()
		ids := sortedItemIDs(units)

		for _, id := range ids {
			it, err := lockItem(ctx, tx, id, false)
			if err != nil {
				return err
			}
			if err := it.Sell(units[id]); err != nil {
				return err
			}
			if err := writeItem(ctx, tx, it, now); err != nil {
				return err
			}
		}

		query := `INSERT INTO sales (customer_id, total, payment_method, notes, status, created_on, updated_on)
		          VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`
		err := tx.QueryRowContext(ctx, query, s.CustomerID, s.Total, s.PaymentMethod, s.Notes,
			string(domain.SaleStatusCompleted), now).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		for i := range s.Lines {
			l := &s.Lines[i]
			l.SaleID = s.ID
			err := tx.QueryRowContext(ctx, `INSERT INTO sale_lines (sale_id, item_id, price) VALUES ($1, $2, $3) RETURNING id`,
				s.ID, l.ItemID, l.Price).Scan(&l.ID)
			if err != nil {
				return fmt.Errorf("insert sale line: %w", err)
			}
		}

		for _, id := range ids {
			saleID := s.ID
			m := &domain.StockMovement{ItemID: id, Kind: domain.MovementSell, Quantity: units[id], SaleID: &saleID, CreatedOn: now}
			if err := insertMovement(ctx, tx, m); err != nil {
				return err
			}
		}

		s.Status = domain.SaleStatusCompleted
		s.CreatedOn = now
		s.UpdatedOn = now
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("saleRepository.Create", err)
		return err
	}
	logger.ExitMethod("saleRepository.Create", "id", s.ID)
	return nil
}

func (r *saleRepository) GetByID(ctx context.Context, id int64) (*domain.Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx, saleSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("sale", id)
	}
	if err != nil {
		return nil, err
	}
	lines, err := r.loadLines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	s.Lines = lines[id]
	return s, nil
}

func (r *saleRepository) List(ctx context.Context) ([]domain.Sale, error) {
	rows, err := r.db.QueryContext(ctx, saleSelect+` ORDER BY created_on DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.Sale
	var ids []int64
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

func (r *saleRepository) loadLines(ctx context.Context, saleIDs []int64) (map[int64][]domain.SaleLine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, sale_id, item_id, price FROM sale_lines WHERE sale_id = ANY($1) ORDER BY id`, pq.Array(saleIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.SaleLine, len(saleIDs))
	for rows.Next() {
		var l domain.SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ItemID, &l.Price); err != nil {
			return nil, err
		}
		out[l.SaleID] = append(out[l.SaleID], l)
	}
	return out, rows.Err()
}

func (r *saleRepository) MarkReturned(ctx context.Context, saleID int64, now time.Time) (*domain.Sale, error) {
	logger.EnterMethod("saleRepository.MarkReturned", "sale_id", saleID)
	err := r.tx.run(ctx, "saleRepository.MarkReturned", func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFoundError("sale", saleID)
		}
		if err != nil {
			return err
		}
		if domain.SaleStatus(status) == domain.SaleStatusReturned {
			return domain.ErrSaleReturned
		}

		rows, err := tx.QueryContext(ctx, `SELECT item_id FROM sale_lines WHERE sale_id = $1`, saleID)
		if err != nil {
			return err
		}
		units := make(map[int64]int)
		for rows.Next() {
			var itemID int64
			if err := rows.Scan(&itemID); err != nil {
				rows.Close()
				return err
			}
			units[itemID]++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range sortedItemIDs(units) {
			// Exhausted items were removed from the catalog after the sale.
			it, err := lockItem(ctx, tx, id, true)
			if err != nil {
				return err
			}
			if err := it.ReturnSale(units[id]); err != nil {
				return err
			}
			if it.DeletedOn != nil && !it.Exhausted() {
				it.DeletedOn = nil
			}
			if err := writeItem(ctx, tx, it, now); err != nil {
				return err
			}
			sid := saleID
			m := &domain.StockMovement{ItemID: id, Kind: domain.MovementReturnSale, Quantity: units[id], SaleID: &sid, CreatedOn: now}
			if err := insertMovement(ctx, tx, m); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE sales SET status = $1, return_date = $2, updated_on = $2 WHERE id = $3`,
			string(domain.SaleStatusReturned), now, saleID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("saleRepository.MarkReturned", err, "sale_id", saleID)
		return nil, err
	}
	logger.ExitMethod("saleRepository.MarkReturned", "sale_id", saleID)
	return r.GetByID(ctx, saleID)
}
