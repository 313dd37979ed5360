package resetcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/partfinder/partfinder/internal/common"
	"github.com/partfinder/partfinder/internal/dbx"
	"github.com/partfinder/partfinder/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, code *models.ResetCode) error {
	query := `
		INSERT INTO reset_codes (email, code, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, code.Email, code.Code, code.Expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, email string) (*models.ResetCode, error) {
	query := `
		SELECT email, code, expires_at
		FROM reset_codes
		WHERE email = $1
	`
	rc := &models.ResetCode{}
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&rc.Email, &rc.Code, &rc.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rc, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, email string) error {
	query := `
		DELETE FROM reset_codes
		WHERE email = $1
	`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
