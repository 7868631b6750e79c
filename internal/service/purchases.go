package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/metrics"
	"github.com/mmeshcher/starsky/internal/model"
	"github.com/mmeshcher/starsky/internal/payment"
	"github.com/mmeshcher/starsky/internal/validation"
)

const fulfillmentBatchSize = 100

// AddPurchase регистрирует платёжную сессию пользователя. Возвращает true, если
// сессия уже была зарегистрирована этим же пользователем.
func (s *Service) AddPurchase(ctx context.Context, accountID int64, sessionID string) (bool, error) {
	if err := validation.SessionID(sessionID); err != nil {
		return false, err
	}
	return s.repo.AddPurchase(ctx, accountID, sessionID)
}

// GetPurchases возвращает покупки кредитов пользователя.
func (s *Service) GetPurchases(ctx context.Context, accountID int64) ([]model.Purchase, error) {
	return s.repo.GetPurchasesByAccount(ctx, accountID)
}

// StartFulfillment опрашивает платёжного провайдера и начисляет кредиты за оплаченные
// сессии. Блокируется до отмены ctx; без провайдера сразу возвращает управление.
func (s *Service) StartFulfillment(ctx context.Context) {
	if s.payments == nil {
		return
	}

	ticker := time.NewTicker(s.fulfillmentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processFulfillmentBatch(ctx)
		}
	}
}

func (s *Service) processFulfillmentBatch(ctx context.Context) {
	purchases, err := s.repo.GetPurchasesForFulfillment(ctx, fulfillmentBatchSize)
	if err != nil {
		s.logger.Error("load purchases for fulfillment", zap.Error(err))
		return
	}

	for _, p := range purchases {
		session, statusCode, retryAfter, err := s.payments.GetSession(ctx, p.SessionID)
		if err != nil {
			s.logger.Debug("get payment session", zap.Error(err), zap.String("session", p.SessionID))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if session == nil {
			continue
		}

		switch session.Status {
		case payment.StatusOpen:
			if p.Status == model.PurchaseStatusNew {
				s.updatePurchaseStatus(ctx, p.SessionID, model.PurchaseStatusPending)
			}
		case payment.StatusCanceled:
			s.updatePurchaseStatus(ctx, p.SessionID, model.PurchaseStatusCanceled)
		case payment.StatusPaid:
			if session.Credits <= 0 {
				s.logger.Warn("paid session without credits", zap.String("session", p.SessionID))
				s.updatePurchaseStatus(ctx, p.SessionID, model.PurchaseStatusCanceled)
				continue
			}
			fulfilled, err := s.repo.FulfillPurchase(ctx, p.SessionID, session.Credits)
			if err != nil {
				s.logger.Error("fulfill purchase", zap.Error(err), zap.String("session", p.SessionID))
				continue
			}
			if fulfilled {
				metrics.RecordPurchaseFulfilled()
				s.logger.Info("purchase fulfilled",
					zap.String("session", p.SessionID), zap.Int64("credits", session.Credits))
			}
		}
	}
}

func (s *Service) updatePurchaseStatus(ctx context.Context, sessionID string, status model.PurchaseStatus) {
	if err := s.repo.UpdatePurchaseStatus(ctx, sessionID, status); err != nil {
		s.logger.Error("update purchase status", zap.Error(err),
			zap.String("session", sessionID), zap.String("status", string(status)))
	}
}
