package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/starsky/internal/model"
)

const starNameConstraint = "stars_name_key"

// CreateStar атомарно проверяет уникальность имени, списывает один кредит (если
// учётная запись не освобождена от списания) и сохраняет звезду. При любой ошибке
// транзакция откатывается целиком.
func (r *PostgresRepository) CreateStar(ctx context.Context, d model.StarDraft) (string, error) {
	var id string
	err := r.withRetry(ctx, func() error {
		var err error
		id, err = r.createStar(ctx, d)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresRepository) createStar(ctx context.Context, d model.StarDraft) (string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Освобождение от списания берётся из учётной записи, а не от вызывающей стороны.
	var exists, exempt bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1), has_unlimited_credits($1)`,
		d.RequesterID,
	).Scan(&exists, &exempt)
	if err != nil {
		return "", fmt.Errorf("check exemption: %w", err)
	}
	if !exists {
		return "", ErrAccountNotFound
	}
	if d.ClaimsExempt && !exempt {
		return "", ErrPrivilegeMismatch
	}

	var taken bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stars WHERE name = $1)`, d.Name).Scan(&taken)
	if err != nil {
		return "", fmt.Errorf("check star name: %w", err)
	}
	if taken {
		return "", ErrNameConflict
	}

	if !exempt {
		if err := spendCredit(ctx, tx, d.RequesterID); err != nil {
			return "", err
		}
	}

	id := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO stars (id, name, message, x, y, size, brightness, sky, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, d.Name, d.Message, d.X, d.Y, d.Size, d.Brightness, string(d.Sky), d.RequesterID,
	)
	if err != nil {
		// Проверка выше лишь оптимизация: гонку закрывает ограничение уникальности.
		if isUniqueViolation(err, starNameConstraint) {
			return "", ErrNameConflict
		}
		return "", fmt.Errorf("insert star: %w", err)
	}

	if err := commitTx(ctx, tx); err != nil {
		if isUniqueViolation(err, starNameConstraint) {
			return "", ErrNameConflict
		}
		return "", err
	}

	return id, nil
}

// spendCredit списывает один кредит условным UPDATE. Строка блокируется, и
// параллельная транзакция после фиксации первой перепроверяет условие credits >= 1.
func spendCredit(ctx context.Context, tx pgx.Tx, accountID int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO credit_balances (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("ensure credit balance: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE credit_balances SET credits = credits - 1, updated_at = now()
		 WHERE account_id = $1 AND credits >= 1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("decrement credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

const starColumns = `id, name, message, x, y, size, brightness, sky, owner_id, created_at`

func scanStar(row pgx.Row) (*model.Star, error) {
	var (
		s   model.Star
		id  uuid.UUID
		sky string
	)
	err := row.Scan(&id, &s.Name, &s.Message, &s.X, &s.Y, &s.Size, &s.Brightness, &sky, &s.OwnerID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ID = id.String()
	s.Sky = model.SkyPartition(sky)
	return &s, nil
}

// GetStar возвращает звезду по идентификатору.
func (r *PostgresRepository) GetStar(ctx context.Context, id string) (*model.Star, error) {
	starID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrStarNotFound
	}

	s, err := scanStar(r.pool.QueryRow(ctx, `SELECT `+starColumns+` FROM stars WHERE id = $1`, starID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStarNotFound
		}
		return nil, fmt.Errorf("get star: %w", err)
	}
	return s, nil
}

// ListStars возвращает звёзды неба. Общее небо видно всем, личное видит только владелец.
func (r *PostgresRepository) ListStars(ctx context.Context, sky model.SkyPartition, viewerID int64) ([]model.Star, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if sky == model.SkyPersonal {
		rows, err = r.pool.Query(ctx,
			`SELECT `+starColumns+` FROM stars WHERE sky = $1 AND owner_id = $2 ORDER BY created_at`,
			string(sky), viewerID,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+starColumns+` FROM stars WHERE sky = $1 ORDER BY created_at`,
			string(sky),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("select stars: %w", err)
	}
	defer rows.Close()

	var stars []model.Star
	for rows.Next() {
		s, err := scanStar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan star: %w", err)
		}
		stars = append(stars, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stars, nil
}

// DeleteStar удаляет звезду и возвращает удалённую запись.
func (r *PostgresRepository) DeleteStar(ctx context.Context, id string) (*model.Star, error) {
	starID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrStarNotFound
	}

	s, err := scanStar(r.pool.QueryRow(ctx, `DELETE FROM stars WHERE id = $1 RETURNING `+starColumns, starID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStarNotFound
		}
		return nil, fmt.Errorf("delete star: %w", err)
	}
	return s, nil
}
