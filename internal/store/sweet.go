package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sweetshop/apiserver/types"
)

const sweetColumns = "id, name, category, price, quantity, image_key, created_at, updated_at"

// SweetRepository handles persistence for catalog items.
type SweetRepository struct {
	db *sql.DB
}

func NewSweetRepository(db *sql.DB) *SweetRepository {
	return &SweetRepository{db: db}
}

func (r *SweetRepository) GetByID(ctx context.Context, id string) (types.Sweet, error) {
	query := fmt.Sprintf(`SELECT %s FROM sweets WHERE id = $1`, sweetColumns)
	return scanSweet(r.db.QueryRowContext(ctx, query, id))
}

func (r *SweetRepository) List(ctx context.Context) ([]types.Sweet, error) {
	query := fmt.Sprintf(`SELECT %s FROM sweets ORDER BY created_at`, sweetColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectSweets(rows)
}

// Search filters by case-insensitive name/category substring and an
// inclusive price range.
func (r *SweetRepository) Search(ctx context.Context, filter types.SweetFilter) ([]types.Sweet, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sweets
		WHERE name ILIKE '%%' || $1 || '%%'
		  AND category ILIKE '%%' || $2 || '%%'
		  AND price >= $3 AND price <= $4
		ORDER BY created_at`, sweetColumns)
	rows, err := r.db.QueryContext(ctx, query, filter.Name, filter.Category, filter.PriceMin, filter.PriceMax)
	if err != nil {
		return nil, err
	}
	return collectSweets(rows)
}

func (r *SweetRepository) Create(ctx context.Context, sweet types.Sweet) (types.Sweet, error) {
	if sweet.ID == "" {
		sweet.ID = uuid.NewString()
	}
	now := time.Now()
	sweet.CreatedAt = now
	sweet.UpdatedAt = now

	const query = `
		INSERT INTO sweets (id, name, category, price, quantity, image_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		sweet.ID,
		sweet.Name,
		sweet.Category,
		sweet.Price,
		sweet.Quantity,
		sweet.ImageKey,
		sweet.CreatedAt,
		sweet.UpdatedAt,
	); err != nil {
		return types.Sweet{}, translateError(err)
	}
	return sweet, nil
}

// Update applies the non-nil fields of upd and returns the updated row.
func (r *SweetRepository) Update(ctx context.Context, id string, upd types.SweetUpdate) (types.Sweet, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.Quantity != nil {
		add("quantity", *upd.Quantity)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	add("updated_at", time.Now())

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE sweets SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), sweetColumns,
	)
	return scanSweet(r.db.QueryRowContext(ctx, query, args...))
}

func (r *SweetRepository) SetImageKey(ctx context.Context, id, imageKey string) error {
	const query = `UPDATE sweets SET image_key = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, imageKey, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Restock atomically adds quantity to the stored stock and returns the
// updated row. Quantity validation happens in the service layer.
func (r *SweetRepository) Restock(ctx context.Context, id string, quantity int) (types.Sweet, error) {
	query := fmt.Sprintf(`
		UPDATE sweets
		SET quantity = quantity + $1, updated_at = $2
		WHERE id = $3
		RETURNING %s`, sweetColumns)
	return scanSweet(r.db.QueryRowContext(ctx, query, quantity, time.Now(), id))
}

func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sweets WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSweet(row *sql.Row) (types.Sweet, error) {
	var sweet types.Sweet
	err := row.Scan(
		&sweet.ID,
		&sweet.Name,
		&sweet.Category,
		&sweet.Price,
		&sweet.Quantity,
		&sweet.ImageKey,
		&sweet.CreatedAt,
		&sweet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Sweet{}, ErrNotFound
		}
		return types.Sweet{}, err
	}
	return sweet, nil
}

func collectSweets(rows *sql.Rows) ([]types.Sweet, error) {
	defer rows.Close()

	sweets := []types.Sweet{}
	for rows.Next() {
		var sweet types.Sweet
		if err := rows.Scan(
			&sweet.ID,
			&sweet.Name,
			&sweet.Category,
			&sweet.Price,
			&sweet.Quantity,
			&sweet.ImageKey,
			&sweet.CreatedAt,
			&sweet.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sweets = append(sweets, sweet)
	}
	return sweets, rows.Err()
}
