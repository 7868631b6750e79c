package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/model"
)

// requireAdmin один раз проверяет привилегии администратора. Сама проверка
// выполняется функцией БД is_admin, а не правилами над таблицей accounts.
func (s *Service) requireAdmin(ctx context.Context, accountID int64) error {
	admin, err := s.repo.IsAdmin(ctx, accountID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

// GrantCredits начисляет кредиты пользователю от имени администратора.
func (s *Service) GrantCredits(ctx context.Context, adminID, accountID, amount int64) (int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive")
	}

	total, err := s.repo.AddCredits(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}

	s.logger.Info("credits granted",
		zap.Int64("adminID", adminID), zap.Int64("accountID", accountID), zap.Int64("amount", amount))
	return total, nil
}

// SetRole меняет роль пользователя.
func (s *Service) SetRole(ctx context.Context, adminID, accountID int64, role model.Role) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if adminID == accountID && role != model.RoleAdmin {
		return ErrSelfDemotion
	}

	if err := s.repo.SetRole(ctx, accountID, role); err != nil {
		return err
	}

	s.logger.Info("role changed",
		zap.Int64("adminID", adminID), zap.Int64("accountID", accountID), zap.String("role", string(role)))
	return nil
}

// SetUnlimitedCredits выдаёт или отзывает безлимитные кредиты.
func (s *Service) SetUnlimitedCredits(ctx context.Context, adminID, accountID int64, unlimited bool) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	if err := s.repo.SetUnlimitedCredits(ctx, accountID, unlimited); err != nil {
		return err
	}

	s.logger.Info("unlimited credits changed",
		zap.Int64("adminID", adminID), zap.Int64("accountID", accountID), zap.Bool("unlimited", unlimited))
	return nil
}
