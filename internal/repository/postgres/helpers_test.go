package postgres

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var (
	fixedTime   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	itemColList = []string{"id", "code", "name", "type", "size", "color", "rental_price", "sale_price",
		"total", "available", "rented", "in_maintenance", "sold", "lost", "available_at", "created_on", "updated_on", "deleted_on"}
	rentalColList = []string{"id", "customer_id", "start_date", "end_date", "rental_amount", "deposit",
		"payment_method", "notes", "status", "return_date", "late_fee_charged", "deposit_retained", "retention_reason",
		"created_on", "updated_on", "c_id", "dni", "name", "phone"}
)

// counts are total, available, rented, in_maintenance, sold, lost.
func itemValues(id int64, counts [6]int) []driver.Value {
	return []driver.Value{id, "TRN-1", "Terno azul", "terno", "M", "azul", "120.00", "450.00",
		counts[0], counts[1], counts[2], counts[3], counts[4], counts[5], nil, fixedTime, fixedTime, nil}
}

func itemRows(id int64, counts [6]int) *sqlmock.Rows {
	return sqlmock.NewRows(itemColList).AddRow(itemValues(id, counts)...)
}

func rentalRows(id int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows(rentalColList).AddRow(id, int64(3), fixedTime, fixedTime.Add(72*time.Hour), "300.00", "50.00",
		"cash", "", status, nil, "0", "0", "", fixedTime, fixedTime, int64(3), "12345678", "Ana Quispe", "999888777")
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *txRunner) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tx := newTxRunner(db, 3)
	tx.backoff = time.Millisecond
	return db, mock, tx
}
