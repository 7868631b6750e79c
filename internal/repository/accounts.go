package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/starsky/internal/model"
)

// CreateAccount создаёт новую учётную запись с ролью user.
func (r *PostgresRepository) CreateAccount(ctx context.Context, login, displayName string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (login, display_name, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		login, displayName, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "") {
			return 0, fmt.Errorf("%w: %s", ErrAccountExists, login)
		}
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

const accountColumns = `id, login, password_hash, display_name, role, unlimited_credits, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a    model.Account
		role string
	)
	err := row.Scan(&a.ID, &a.Login, &a.PasswordHash, &a.DisplayName, &role, &a.UnlimitedCredits, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Role = model.Role(role)
	return &a, nil
}

// GetAccountByLogin возвращает учётную запись по логину.
func (r *PostgresRepository) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE login = $1`,
		login,
	))
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))
}

// IsAdmin проверяет привилегии администратора через функцию is_admin.
func (r *PostgresRepository) IsAdmin(ctx context.Context, id int64) (bool, error) {
	var admin bool
	if err := r.pool.QueryRow(ctx, `SELECT is_admin($1)`, id).Scan(&admin); err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return admin, nil
}

// SetRole меняет роль учётной записи.
func (r *PostgresRepository) SetRole(ctx context.Context, id int64, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetUnlimitedCredits включает или выключает безлимитные кредиты.
func (r *PostgresRepository) SetUnlimitedCredits(ctx context.Context, id int64, unlimited bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET unlimited_credits = $2 WHERE id = $1`, id, unlimited)
	if err != nil {
		return fmt.Errorf("set unlimited credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetCredits возвращает остаток кредитов. Отсутствующая запись баланса означает ноль
// и не создаётся.
func (r *PostgresRepository) GetCredits(ctx context.Context, id int64) (*model.Credits, error) {
	var (
		exists bool
		c      model.Credits
	)
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1),
		        has_unlimited_credits($1),
		        COALESCE((SELECT credits FROM credit_balances WHERE account_id = $1), 0)`,
		id,
	).Scan(&exists, &c.Unlimited, &c.Credits)
	if err != nil {
		return nil, fmt.Errorf("get credits: %w", err)
	}
	if !exists {
		return nil, ErrAccountNotFound
	}
	return &c, nil
}

// AddCredits увеличивает баланс кредитов, создавая запись при её отсутствии, и
// возвращает новый остаток.
func (r *PostgresRepository) AddCredits(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("add credits: amount must be positive, got %d", amount)
	}

	var total int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx, addCreditsQuery, id, amount).Scan(&total)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return total, nil
}

const addCreditsQuery = `INSERT INTO credit_balances (account_id, credits) VALUES ($1, $2)
	 ON CONFLICT (account_id)
	 DO UPDATE SET credits = credit_balances.credits + EXCLUDED.credits, updated_at = now()
	 RETURNING credits`
