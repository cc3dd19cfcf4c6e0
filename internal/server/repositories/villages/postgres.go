package villages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/dbx"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
)

const selectColumns = `id, user_id, name_kh, name_en, age, gender, dob, image_path, created_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVillage(row rowScanner) (*models.Village, error) {
	v := &models.Village{}
	err := row.Scan(&v.ID, &v.UserID, &v.NameKH, &v.NameEN, &v.Age, &v.Gender, &v.DOB, &v.ImagePath, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Create inserts v and fills ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, v *models.Village) (*models.Village, error) {
	query := `
		INSERT INTO villages (user_id, name_kh, name_en, age, gender, dob, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		v.UserID, v.NameKH, v.NameEN, v.Age, v.Gender, v.DOB, v.ImagePath).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Village, error) {
	return r.getByID(ctx, `SELECT `+selectColumns+` FROM villages WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Village, error) {
	return r.getByID(ctx, `SELECT `+selectColumns+` FROM villages WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) getByID(ctx context.Context, query string, id int64) (*models.Village, error) {
	v, err := scanVillage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

// ListByOwner returns the owner's records ordered by id.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Village, error) {
	query := `SELECT ` + selectColumns + ` FROM villages WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select villages: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Village, 0)
	for rows.Next() {
		v, err := scanVillage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Delete removes the record; common.ErrorNotFound when nothing was deleted.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM villages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
