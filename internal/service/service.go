// Package service реализует бизнес-логику сервиса звёздного неба.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/starsky/internal/model"
	"github.com/mmeshcher/starsky/internal/payment"
	"github.com/mmeshcher/starsky/internal/placement"
	"github.com/mmeshcher/starsky/internal/random"
	"github.com/mmeshcher/starsky/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если у пользователя нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfDemotion возвращается при попытке администратора снять роль с самого себя.
	ErrSelfDemotion = errors.New("admins cannot demote themselves")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateAccount(ctx context.Context, login, displayName string, passwordHash []byte) (int64, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	IsAdmin(ctx context.Context, id int64) (bool, error)
	SetRole(ctx context.Context, id int64, role model.Role) error
	SetUnlimitedCredits(ctx context.Context, id int64, unlimited bool) error
	GetCredits(ctx context.Context, id int64) (*model.Credits, error)
	AddCredits(ctx context.Context, id int64, amount int64) (int64, error)
	CreateStar(ctx context.Context, d model.StarDraft) (string, error)
	GetStar(ctx context.Context, id string) (*model.Star, error)
	ListStars(ctx context.Context, sky model.SkyPartition, viewerID int64) ([]model.Star, error)
	DeleteStar(ctx context.Context, id string) (*model.Star, error)
	AddPurchase(ctx context.Context, accountID int64, sessionID string) (bool, error)
	GetPurchasesByAccount(ctx context.Context, accountID int64) ([]model.Purchase, error)
	GetPurchasesForFulfillment(ctx context.Context, limit int) ([]repository.PurchaseForFulfillment, error)
	UpdatePurchaseStatus(ctx context.Context, sessionID string, status model.PurchaseStatus) error
	FulfillPurchase(ctx context.Context, sessionID string, credits int64) (bool, error)
}

// Publisher рассылает события неба.
type Publisher interface {
	Publish(ctx context.Context, ev model.StarEvent) error
}

// PaymentProvider запрашивает состояние платёжных сессий.
type PaymentProvider interface {
	GetSession(ctx context.Context, sessionID string) (*payment.Session, int, time.Duration, error)
}

// Service содержит бизнес-логику сервиса звёздного неба.
type Service struct {
	repo      Repository
	payments  PaymentProvider
	publisher Publisher
	sampler   *placement.Sampler
	logger    *zap.Logger

	createTimeout       time.Duration
	fulfillmentInterval time.Duration
}

// Option настраивает Service.
type Option func(*Service)

// WithCreateTimeout ограничивает время транзакции создания звезды.
func WithCreateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.createTimeout = d
		}
	}
}

// WithSampler подменяет подбор координат.
func WithSampler(sampler *placement.Sampler) Option {
	return func(s *Service) { s.sampler = sampler }
}

// WithFulfillmentInterval задаёт период опроса платёжного провайдера.
func WithFulfillmentInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fulfillmentInterval = d
		}
	}
}

// NewService создаёт новый сервис. payments и publisher могут быть nil.
func NewService(repo Repository, payments PaymentProvider, publisher Publisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:                repo,
		payments:            payments,
		publisher:           publisher,
		sampler:             placement.NewSampler(placement.DefaultConfig(), random.New()),
		logger:              logger,
		createTimeout:       5 * time.Second,
		fulfillmentInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterAccount регистрирует нового пользователя.
func (s *Service) RegisterAccount(ctx context.Context, login, password, displayName string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if displayName == "" {
		displayName = login
	}
	return s.repo.CreateAccount(ctx, login, displayName, hashed)
}

// Authenticate проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) Authenticate(ctx context.Context, login, password string) (int64, error) {
	a, err := s.repo.GetAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return a.ID, nil
}

// GetCredits возвращает остаток кредитов пользователя.
func (s *Service) GetCredits(ctx context.Context, accountID int64) (*model.Credits, error) {
	return s.repo.GetCredits(ctx, accountID)
}

func (s *Service) publish(ctx context.Context, ev model.StarEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish star event", zap.Error(err), zap.String("event", string(ev.Type)), zap.String("star", ev.Star.ID))
	}
}
