package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/metrics"
	"github.com/mmeshcher/starsky/internal/model"
	"github.com/mmeshcher/starsky/internal/placement"
	"github.com/mmeshcher/starsky/internal/repository"
	"github.com/mmeshcher/starsky/internal/validation"
)

// CreateStarRequest описывает запрос на создание звезды. Если координаты не заданы, они
// подбираются автоматически; нулевые размер и яркость тоже подбираются.
type CreateStarRequest struct {
	Name       string
	Message    string
	X          *float64
	Y          *float64
	Size       float64
	Brightness float64
	Sky        model.SkyPartition
	// Exempt содержит заявленное клиентом право на безлимитные кредиты. Проверяется в транзакции.
	Exempt bool
}

// CreateStar создаёт звезду и всегда возвращает структурированный результат.
func (s *Service) CreateStar(ctx context.Context, requesterID int64, req CreateStarRequest) model.CreateStarResult {
	start := time.Now()
	res := s.createStar(ctx, requesterID, req)
	metrics.RecordStarCreation(string(res.Outcome), time.Since(start))
	return res
}

func (s *Service) createStar(ctx context.Context, requesterID int64, req CreateStarRequest) model.CreateStarResult {
	name, err := validation.StarName(req.Name)
	if err != nil {
		return invalid(err)
	}
	message, err := validation.Message(req.Message)
	if err != nil {
		return invalid(err)
	}
	sky, err := validation.Sky(string(req.Sky))
	if err != nil {
		return invalid(err)
	}

	point, res, ok := s.placeStar(ctx, requesterID, sky, req)
	if !ok {
		return res
	}

	size, brightness := req.Size, req.Brightness
	if size <= 0 || brightness <= 0 {
		sampledSize, sampledBrightness := s.sampler.Appearance()
		if size <= 0 {
			size = sampledSize
		}
		if brightness <= 0 {
			brightness = sampledBrightness
		}
	}

	draft := model.StarDraft{
		RequesterID:  requesterID,
		Name:         name,
		Message:      message,
		X:            point.X,
		Y:            point.Y,
		Size:         size,
		Brightness:   brightness,
		Sky:          sky,
		ClaimsExempt: req.Exempt,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.createTimeout)
	defer cancel()

	id, err := s.repo.CreateStar(txCtx, draft)
	if err != nil {
		return s.failedCreate(requesterID, name, err)
	}

	s.publish(ctx, model.StarEvent{
		Type: model.EventStarCreated,
		Star: model.Star{
			ID:         id,
			Name:       draft.Name,
			Message:    draft.Message,
			X:          draft.X,
			Y:          draft.Y,
			Size:       draft.Size,
			Brightness: draft.Brightness,
			Sky:        draft.Sky,
			OwnerID:    requesterID,
			CreatedAt:  time.Now().UTC(),
		},
	})

	return model.CreateStarResult{Outcome: model.OutcomeSuccess, StarID: id}
}

// placeStar возвращает координаты из запроса или подбирает их по снимку неба.
func (s *Service) placeStar(ctx context.Context, requesterID int64, sky model.SkyPartition, req CreateStarRequest) (placement.Point, model.CreateStarResult, bool) {
	if req.X != nil || req.Y != nil {
		if req.X == nil || req.Y == nil {
			return placement.Point{}, invalidDetail("both x and y must be set"), false
		}
		p := placement.Point{X: *req.X, Y: *req.Y}
		if !s.sampler.InBounds(p) {
			return placement.Point{}, invalidDetail("coordinates are outside the sky"), false
		}
		return p, model.CreateStarResult{}, true
	}

	stars, err := s.repo.ListStars(ctx, sky, requesterID)
	if err != nil {
		s.logger.Error("load sky snapshot", zap.Error(err), zap.Int64("accountID", requesterID))
		return placement.Point{}, failure("storage failure"), false
	}

	existing := make([]placement.Point, 0, len(stars))
	for _, st := range stars {
		existing = append(existing, placement.Point{X: st.X, Y: st.Y})
	}

	p, err := s.sampler.Place(existing)
	if err != nil {
		return placement.Point{}, model.CreateStarResult{Outcome: model.OutcomeSkyTooCrowded}, false
	}
	return p, model.CreateStarResult{}, true
}

func (s *Service) failedCreate(requesterID int64, name string, err error) model.CreateStarResult {
	switch {
	case errors.Is(err, repository.ErrNameConflict):
		return model.CreateStarResult{Outcome: model.OutcomeNameConflict}
	case errors.Is(err, repository.ErrInsufficientCredits):
		return model.CreateStarResult{Outcome: model.OutcomeInsufficientCredits}
	case errors.Is(err, repository.ErrPrivilegeMismatch):
		s.logger.Warn("credit exemption claimed without privilege",
			zap.Int64("accountID", requesterID), zap.String("star", name))
		return failure("privilege mismatch")
	case errors.Is(err, repository.ErrAccountNotFound):
		return failure("account not found")
	case errors.Is(err, repository.ErrCommitUncertain):
		s.logger.Error("star creation commit outcome unknown", zap.Error(err),
			zap.Int64("accountID", requesterID), zap.String("star", name))
		return failure("commit outcome unknown")
	default:
		s.logger.Error("create star", zap.Error(err), zap.Int64("accountID", requesterID), zap.String("star", name))
		return failure("storage failure")
	}
}

func invalid(err error) model.CreateStarResult {
	return invalidDetail(err.Error())
}

func invalidDetail(detail string) model.CreateStarResult {
	return model.CreateStarResult{Outcome: model.OutcomeInvalid, Detail: detail}
}

func failure(detail string) model.CreateStarResult {
	return model.CreateStarResult{Outcome: model.OutcomeFailure, Detail: detail}
}

// ListStars возвращает звёзды неба, видимые пользователю.
func (s *Service) ListStars(ctx context.Context, viewerID int64, sky model.SkyPartition) ([]model.Star, error) {
	return s.repo.ListStars(ctx, sky, viewerID)
}

// DeleteStar удаляет звезду. Удалять может владелец или администратор.
func (s *Service) DeleteStar(ctx context.Context, requesterID int64, starID string) error {
	star, err := s.repo.GetStar(ctx, starID)
	if err != nil {
		return err
	}

	if star.OwnerID != requesterID {
		if err := s.requireAdmin(ctx, requesterID); err != nil {
			return err
		}
	}

	deleted, err := s.repo.DeleteStar(ctx, starID)
	if err != nil {
		return err
	}

	s.publish(ctx, model.StarEvent{Type: model.EventStarDeleted, Star: *deleted})
	return nil
}
