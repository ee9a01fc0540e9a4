package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/repository"
)

const rentalSelect = `SELECT r.id, r.customer_id, r.start_date, r.end_date, r.rental_amount, r.deposit,
	COALESCE(r.payment_method, ''), COALESCE(r.notes, ''), r.status, r.return_date,
	r.late_fee_charged, r.deposit_retained, COALESCE(r.retention_reason, ''), r.created_on, r.updated_on,
	c.id, COALESCE(c.dni, ''), COALESCE(c.name, ''), COALESCE(c.phone, '')
	FROM rentals r LEFT JOIN customers c ON c.id = r.customer_id`

// outcomeOrder fixes the order releases are applied in, so movements are
// recorded deterministically.
var outcomeOrder = []domain.ReturnOutcome{domain.OutcomeComplete, domain.OutcomeDamaged, domain.OutcomeLost}

type rentalRepository struct {
	db         *sql.DB
	tx         *txRunner
	procedures []string
}

func NewRentalRepository(db *sql.DB, tx *txRunner, procedures []string) repository.RentalRepository {
	return &rentalRepository{db: db, tx: tx, procedures: procedures}
}

func scanRental(row rowScanner) (*domain.Rental, error) {
	rt := &domain.Rental{}
	var status string
	var customerID sql.NullInt64
	var c domain.Customer
	err := row.Scan(&rt.ID, &rt.CustomerID, &rt.StartDate, &rt.EndDate, &rt.RentalAmount, &rt.Deposit,
		&rt.PaymentMethod, &rt.Notes, &status, &rt.ReturnDate,
		&rt.LateFeeCharged, &rt.DepositRetained, &rt.RetentionReason, &rt.CreatedOn, &rt.UpdatedOn,
		&customerID, &c.DNI, &c.Name, &c.Phone)
	if err != nil {
		return nil, err
	}
	rt.Status = domain.RentalStatus(status)
	if customerID.Valid {
		c.ID = customerID.Int64
		rt.Customer = &c
	}
	return rt, nil
}

func sortedItemIDs(units map[int64]int) []int64 {
	ids := make([]int64, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	logger.EnterMethod("rentalRepository.Create", "customer_id", rt.CustomerID, "units", len(rt.Lines))
	if len(rt.Lines) == 0 {
		return domain.NewValidationError("items", "a rental needs at least one unit")
	}

	err := r.tx.run(ctx, "rentalRepository.Create", func(tx *sql.Tx) error {
		now := time.Now().UTC()
		units := rt.UnitsPerItem()
		ids := sortedItemIDs(units)
		names := make(map[int64]string, len(ids))

		// Items are locked in id order so concurrent creates cannot deadlock.
		for _, id := range ids {
			it, err := lockItem(ctx, tx, id, false)
			if err != nil {
				return err
			}
			if err := it.Reserve(units[id]); err != nil {
				return err
			}
			if err := writeItem(ctx, tx, it, now); err != nil {
				return err
			}
			names[id] = it.Name
		}

		query := `INSERT INTO rentals (customer_id, start_date, end_date, rental_amount, deposit, payment_method, notes,
		          status, late_fee_charged, deposit_retained, retention_reason, created_on, updated_on)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, '', $9, $9) RETURNING id`
		err := tx.QueryRowContext(ctx, query, rt.CustomerID, rt.StartDate, rt.EndDate, rt.RentalAmount, rt.Deposit,
			rt.PaymentMethod, rt.Notes, string(domain.RentalStatusActive), now).Scan(&rt.ID)
		if err != nil {
			return fmt.Errorf("insert rental: %w", err)
		}

		for i := range rt.Lines {
			l := &rt.Lines[i]
			l.RentalID = rt.ID
			l.Status = domain.LineStatusRented
			l.ItemName = names[l.ItemID]
			err := tx.QueryRowContext(ctx, `INSERT INTO rental_lines (rental_id, item_id, status) VALUES ($1, $2, $3) RETURNING id`,
				rt.ID, l.ItemID, string(l.Status)).Scan(&l.ID)
			if err != nil {
				return fmt.Errorf("insert rental line: %w", err)
			}
		}

		for _, id := range ids {
			rentalID := rt.ID
			m := &domain.StockMovement{ItemID: id, Kind: domain.MovementReserve, Quantity: units[id], RentalID: &rentalID, CreatedOn: now}
			if err := insertMovement(ctx, tx, m); err != nil {
				return err
			}
		}

		rt.Status = domain.RentalStatusActive
		rt.CreatedOn = now
		rt.UpdatedOn = now
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Create", err)
		return err
	}
	logger.ExitMethod("rentalRepository.Create", "id", rt.ID)
	return nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	rt, err := scanRental(r.db.QueryRowContext(ctx, rentalSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("rental", id)
	}
	if err != nil {
		return nil, err
	}
	lines, err := r.loadLines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	rt.Lines = lines[id]
	return rt, nil
}

func (r *rentalRepository) List(ctx context.Context) ([]domain.Rental, error) {
	return r.query(ctx, rentalSelect+` ORDER BY r.created_on DESC, r.id DESC`)
}

func (r *rentalRepository) ListByStatus(ctx context.Context, statuses ...domain.RentalStatus) ([]domain.Rental, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return r.query(ctx, rentalSelect+` WHERE r.status = ANY($1) ORDER BY r.created_on DESC, r.id DESC`, pq.Array(values))
}

func (r *rentalRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Rental, error) {
	return r.query(ctx, rentalSelect+` WHERE r.status = $1 AND r.end_date < $2 ORDER BY r.end_date`,
		string(domain.RentalStatusActive), now)
}

func (r *rentalRepository) query(ctx context.Context, query string, args ...any) ([]domain.Rental, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rentals []domain.Rental
	var ids []int64
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
		ids = append(ids, rt.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return rentals, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rentals {
		rentals[i].Lines = lines[rentals[i].ID]
	}
	return rentals, nil
}

func (r *rentalRepository) loadLines(ctx context.Context, rentalIDs []int64) (map[int64][]domain.RentalLine, error) {
	query := `SELECT l.id, l.rental_id, l.item_id, COALESCE(i.name, ''), l.status, l.returned_on
	          FROM rental_lines l LEFT JOIN items i ON i.id = l.item_id
	          WHERE l.rental_id = ANY($1) ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(rentalIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.RentalLine, len(rentalIDs))
	for rows.Next() {
		var l domain.RentalLine
		var status string
		if err := rows.Scan(&l.ID, &l.RentalID, &l.ItemID, &l.ItemName, &status, &l.ReturnedOn); err != nil {
			return nil, err
		}
		l.Status = domain.LineStatus(status)
		out[l.RentalID] = append(out[l.RentalID], l)
	}
	return out, rows.Err()
}

// ProcessReturn runs the first installed return procedure. When none of the
// configured procedures exists it applies the same return in a transaction.
func (r *rentalRepository) ProcessReturn(ctx context.Context, cmd *domain.ReturnCommand) (*domain.Rental, error) {
	logger.EnterMethod("rentalRepository.ProcessReturn", "rental_id", cmd.RentalID, "units", len(cmd.Outcomes))

	for _, name := range r.procedures {
		err := r.callReturnProcedure(ctx, name, cmd)
		if err == nil {
			logger.ExitMethod("rentalRepository.ProcessReturn", "rental_id", cmd.RentalID, "procedure", name)
			return r.GetByID(ctx, cmd.RentalID)
		}
		if isUndefinedFunction(err) {
			logger.Warn("Return procedure not installed", "procedure", name)
			continue
		}
		err = translateProcedureError(err, cmd.RentalID)
		logger.ExitMethodWithError("rentalRepository.ProcessReturn", err, "procedure", name)
		return nil, err
	}

	err := r.tx.run(ctx, "rentalRepository.ProcessReturn", func(tx *sql.Tx) error {
		return processReturnTx(ctx, tx, cmd)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.ProcessReturn", err, "rental_id", cmd.RentalID)
		return nil, err
	}
	logger.ExitMethod("rentalRepository.ProcessReturn", "rental_id", cmd.RentalID)
	return r.GetByID(ctx, cmd.RentalID)
}

func (r *rentalRepository) callReturnProcedure(ctx context.Context, name string, cmd *domain.ReturnCommand) error {
	outcomes, err := json.Marshal(cmd.Outcomes)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`SELECT %s($1, $2::jsonb, $3, $4, $5, $6, $7, $8)`, name)
	logger.DatabaseCall("CALL", name, "rental_id", cmd.RentalID)
	return r.tx.retry(ctx, name, func() error {
		_, err := r.db.ExecContext(ctx, query, cmd.RentalID, string(outcomes), cmd.LateFee, cmd.DepositRetained,
			cmd.RetentionReason, cmd.ReturnedAt, int64(cmd.Hold.Complete/time.Hour), int64(cmd.Hold.Damaged/time.Hour))
		return err
	})
}

// translateProcedureError maps the exceptions raised by the return procedure
// to domain errors.
func translateProcedureError(err error, rentalID int64) error {
	code, message, ok := sqlState(err)
	if !ok {
		return err
	}
	switch code {
	case codeNoDataFound:
		return domain.NewNotFoundError("rental", rentalID)
	case codeRaiseException:
		if message == domain.ErrRentalClosed.Message {
			return domain.ErrRentalClosed
		}
		return &domain.ValidationError{Message: message}
	}
	return err
}

func processReturnTx(ctx context.Context, tx *sql.Tx, cmd *domain.ReturnCommand) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM rentals WHERE id = $1 FOR UPDATE`, cmd.RentalID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("rental", cmd.RentalID)
	}
	if err != nil {
		return err
	}
	if domain.RentalStatus(status) != domain.RentalStatusActive {
		return domain.ErrRentalClosed
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, item_id, status FROM rental_lines WHERE rental_id = $1 ORDER BY id FOR UPDATE`, cmd.RentalID)
	if err != nil {
		return err
	}
	var lines []domain.RentalLine
	for rows.Next() {
		var l domain.RentalLine
		var ls string
		if err := rows.Scan(&l.ID, &l.ItemID, &ls); err != nil {
			rows.Close()
			return err
		}
		l.Status = domain.LineStatus(ls)
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	index := make(map[int64]int, len(lines))
	for i, l := range lines {
		index[l.ID] = i
	}

	released := make(map[int64]map[domain.ReturnOutcome]int)
	for _, o := range cmd.Outcomes {
		i, ok := index[o.LineID]
		if !ok {
			return domain.NewValidationError("lines", "line %d does not belong to rental %d", o.LineID, cmd.RentalID)
		}
		if lines[i].Status != domain.LineStatusRented {
			return domain.NewValidationError("lines", "line %d is not rented", o.LineID)
		}
		lines[i].Status = o.Outcome.LineStatus()
		if released[lines[i].ItemID] == nil {
			released[lines[i].ItemID] = make(map[domain.ReturnOutcome]int)
		}
		released[lines[i].ItemID][o.Outcome]++
	}

	counts := make(map[int64]int, len(released))
	for id := range released {
		counts[id] = 1
	}
	for _, id := range sortedItemIDs(counts) {
		it, err := lockItem(ctx, tx, id, true)
		if err != nil {
			return err
		}
		var movements []*domain.StockMovement
		for _, outcome := range outcomeOrder {
			n := released[id][outcome]
			if n == 0 {
				continue
			}
			if err := it.Release(n, outcome, cmd.ReturnedAt, cmd.Hold); err != nil {
				return err
			}
			rentalID := cmd.RentalID
			movements = append(movements, &domain.StockMovement{
				ItemID: id, Kind: domain.ReleaseMovement(outcome), Quantity: n, RentalID: &rentalID, CreatedOn: cmd.ReturnedAt,
			})
		}
		if err := writeItem(ctx, tx, it, cmd.ReturnedAt); err != nil {
			return err
		}
		for _, m := range movements {
			if err := insertMovement(ctx, tx, m); err != nil {
				return err
			}
		}
	}

	for _, o := range cmd.Outcomes {
		_, err := tx.ExecContext(ctx, `UPDATE rental_lines SET status = $1, returned_on = $2 WHERE id = $3`,
			string(o.Outcome.LineStatus()), cmd.ReturnedAt, o.LineID)
		if err != nil {
			return fmt.Errorf("update rental line %d: %w", o.LineID, err)
		}
	}

	query := `UPDATE rentals SET status = $1, return_date = $2, late_fee_charged = $3, deposit_retained = $4,
	          retention_reason = $5, updated_on = $6 WHERE id = $7`
	_, err = tx.ExecContext(ctx, query, string(domain.ClosingStatus(lines)), cmd.ReturnedAt, cmd.LateFee,
		cmd.DepositRetained, cmd.RetentionReason, cmd.ReturnedAt, cmd.RentalID)
	if err != nil {
		return fmt.Errorf("close rental %d: %w", cmd.RentalID, err)
	}
	return nil
}

func (r *rentalRepository) CountRentedLines(ctx context.Context, rentalID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rental_lines WHERE rental_id = $1 AND status = $2`,
		rentalID, string(domain.LineStatusRented)).Scan(&n)
	return n, err
}

func (r *rentalRepository) Reopen(ctx context.Context, rentalID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rentals SET status = $1, return_date = NULL, updated_on = $2 WHERE id = $3`,
		string(domain.RentalStatusActive), time.Now().UTC(), rentalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "table", "rentals", "rental_id", rentalID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError("rental", rentalID)
	}
	return nil
}
