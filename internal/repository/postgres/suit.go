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

const codeForeignKeyViolation = "23503"

type suitRepository struct {
	db *sql.DB
	tx *txRunner
}

func NewSuitRepository(db *sql.DB, tx *txRunner) repository.SuitRepository {
	return &suitRepository{db: db, tx: tx}
}

// suitItemRow scans a suit id ahead of the item columns.
type suitItemRow struct {
	rows   *sql.Rows
	suitID *int64
}

func (r suitItemRow) Scan(dest ...any) error {
	return r.rows.Scan(append([]any{r.suitID}, dest...)...)
}

func (r *suitRepository) Create(ctx context.Context, suit *domain.Suit) error {
	logger.EnterMethod("suitRepository.Create", "name", suit.Name)
	if suit.CreatedOn.IsZero() {
		suit.CreatedOn = time.Now().UTC()
	}
	err := r.tx.run(ctx, "suitRepository.Create", func(tx *sql.Tx) error {
		logger.DatabaseCall("INSERT", "suits")
		query := `INSERT INTO suits (name, description, created_on) VALUES ($1, $2, $3) RETURNING id`
		if err := tx.QueryRowContext(ctx, query, suit.Name, suit.Description, suit.CreatedOn).Scan(&suit.ID); err != nil {
			return fmt.Errorf("insert suit: %w", err)
		}
		for _, itemID := range suit.ItemIDs() {
			_, err := tx.ExecContext(ctx, `INSERT INTO suit_items (suit_id, item_id) VALUES ($1, $2)`, suit.ID, itemID)
			if hasCode(err, codeForeignKeyViolation) {
				return domain.NewNotFoundError("item", itemID)
			}
			if err != nil {
				return fmt.Errorf("link item %d to suit: %w", itemID, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("suitRepository.Create", err)
		return err
	}
	logger.ExitMethod("suitRepository.Create", "id", suit.ID)
	return nil
}

func (r *suitRepository) GetByID(ctx context.Context, id int64) (*domain.Suit, error) {
	s := &domain.Suit{}
	query := `SELECT id, name, description, created_on FROM suits WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.Description, &s.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("suit", id)
	}
	if err != nil {
		return nil, err
	}
	byID := map[int64]*domain.Suit{s.ID: s}
	if err := r.loadItems(ctx, byID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *suitRepository) List(ctx context.Context) ([]domain.Suit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, created_on FROM suits ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	var suits []*domain.Suit
	byID := make(map[int64]*domain.Suit)
	for rows.Next() {
		s := &domain.Suit{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedOn); err != nil {
			rows.Close()
			return nil, err
		}
		suits = append(suits, s)
		byID[s.ID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, byID); err != nil {
		return nil, err
	}

	out := make([]domain.Suit, 0, len(suits))
	for _, s := range suits {
		out = append(out, *s)
	}
	return out, nil
}

// loadItems attaches the live catalog items of every suit in byID.
func (r *suitRepository) loadItems(ctx context.Context, byID map[int64]*domain.Suit) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	query := `SELECT suit_id, ` + itemColumns + ` FROM suit_items JOIN items ON items.id = suit_items.item_id
	          WHERE suit_id = ANY($1) AND deleted_on IS NULL ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load suit items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var suitID int64
		it, err := scanItem(suitItemRow{rows: rows, suitID: &suitID})
		if err != nil {
			return err
		}
		if s, ok := byID[suitID]; ok {
			s.Items = append(s.Items, *it)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, s := range byID {
		if s.Items == nil {
			s.Items = []domain.Item{}
		}
		s.ComputeTotals()
	}
	return nil
}
