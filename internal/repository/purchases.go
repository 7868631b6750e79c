package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/starsky/internal/model"
)

// AddPurchase регистрирует платёжную сессию и возвращает признак того, что она уже была
// зарегистрирована этим пользователем.
func (r *PostgresRepository) AddPurchase(ctx context.Context, accountID int64, sessionID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`INSERT INTO purchases (session_id, account_id, status) VALUES ($1, $2, $3) ON CONFLICT (session_id) DO NOTHING`,
		sessionID, accountID, string(model.PurchaseStatusNew),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrAccountNotFound
		}
		return false, fmt.Errorf("insert purchase: %w", err)
	}

	inserted := cmdTag.RowsAffected() == 1

	var existingAccountID int64
	err = tx.QueryRow(ctx,
		`SELECT account_id FROM purchases WHERE session_id = $1`,
		sessionID,
	).Scan(&existingAccountID)
	if err != nil {
		return false, fmt.Errorf("select existing purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	if existingAccountID == accountID {
		return !inserted, nil
	}

	return false, ErrPurchaseOwnedByAnother
}

// GetPurchasesByAccount возвращает покупки пользователя, новые первыми.
func (r *PostgresRepository) GetPurchasesByAccount(ctx context.Context, accountID int64) ([]model.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, status, credits, created_at
		 FROM purchases
		 WHERE account_id = $1
		 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var (
			p         model.Purchase
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(&p.SessionID, &status, &p.Credits, &createdAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		p.Status = model.PurchaseStatus(status)
		p.CreatedAt = createdAt
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return purchases, nil
}

// PurchaseForFulfillment описывает покупку, ожидающую подтверждения оплаты.
type PurchaseForFulfillment struct {
	SessionID string
	Status    model.PurchaseStatus
}

// GetPurchasesForFulfillment возвращает покупки, статус которых нужно запросить у провайдера.
func (r *PostgresRepository) GetPurchasesForFulfillment(ctx context.Context, limit int) ([]PurchaseForFulfillment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, status
		 FROM purchases
		 WHERE status IN ($1, $2)
		 ORDER BY created_at
		 LIMIT $3`,
		string(model.PurchaseStatusNew),
		string(model.PurchaseStatusPending),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases for fulfillment: %w", err)
	}
	defer rows.Close()

	var res []PurchaseForFulfillment
	for rows.Next() {
		var sessionID, status string
		if err := rows.Scan(&sessionID, &status); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		res = append(res, PurchaseForFulfillment{
			SessionID: sessionID,
			Status:    model.PurchaseStatus(status),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdatePurchaseStatus обновляет статус ещё не исполненной покупки.
func (r *PostgresRepository) UpdatePurchaseStatus(ctx context.Context, sessionID string, status model.PurchaseStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE purchases SET status = $2 WHERE session_id = $1 AND status IN ($3, $4)`,
		sessionID, string(status),
		string(model.PurchaseStatusNew), string(model.PurchaseStatusPending),
	)
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	return nil
}

// FulfillPurchase в одной транзакции помечает оплаченную покупку исполненной и начисляет
// кредиты. Повторный вызов для той же сессии ничего не меняет и возвращает false.
func (r *PostgresRepository) FulfillPurchase(ctx context.Context, sessionID string, credits int64) (bool, error) {
	if credits <= 0 {
		return false, fmt.Errorf("fulfill purchase: credits must be positive, got %d", credits)
	}

	var fulfilled bool
	err := r.withRetry(ctx, func() error {
		var err error
		fulfilled, err = r.fulfillPurchase(ctx, sessionID, credits)
		return err
	})
	return fulfilled, err
}

func (r *PostgresRepository) fulfillPurchase(ctx context.Context, sessionID string, credits int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var accountID int64
	err = tx.QueryRow(ctx,
		`UPDATE purchases SET status = $2, credits = $3
		 WHERE session_id = $1 AND status IN ($4, $5)
		 RETURNING account_id`,
		sessionID, string(model.PurchaseStatusFulfilled), credits,
		string(model.PurchaseStatusNew), string(model.PurchaseStatusPending),
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("mark purchase fulfilled: %w", err)
	}

	var total int64
	if err := tx.QueryRow(ctx, addCreditsQuery, accountID, credits).Scan(&total); err != nil {
		return false, fmt.Errorf("add credits: %w", err)
	}

	if err := commitTx(ctx, tx); err != nil {
		return false, err
	}

	return true, nil
}
