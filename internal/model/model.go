// Package model содержит доменные сущности сервиса звёздного неба.
package model

import "time"

// Role описывает роль учётной записи.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли роль допустимой.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account представляет учётную запись пользователя.
type Account struct {
	ID               int64
	Login            string
	PasswordHash     []byte
	DisplayName      string
	Role             Role
	UnlimitedCredits bool
	CreatedAt        time.Time
}

// SkyPartition определяет, к какому небу относится звезда.
type SkyPartition string

const (
	SkyShared   SkyPartition = "shared"
	SkyPersonal SkyPartition = "personal"
)

// Star описывает звезду, размещённую на небе.
type Star struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Message    string       `json:"message"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Size       float64      `json:"size"`
	Brightness float64      `json:"brightness"`
	Sky        SkyPartition `json:"sky"`
	OwnerID    int64        `json:"owner_id"`
	CreatedAt  time.Time    `json:"created_at"`
}

// StarDraft содержит входные данные транзакции создания звезды.
//
// ClaimsExempt передаётся вызывающей стороной; внутри транзакции признак
// пересчитывается по учётной записи и расхождение считается ошибкой.
type StarDraft struct {
	RequesterID  int64
	Name         string
	Message      string
	X            float64
	Y            float64
	Size         float64
	Brightness   float64
	Sky          SkyPartition
	ClaimsExempt bool
}

// CreateOutcome описывает итог попытки создать звезду.
type CreateOutcome string

const (
	OutcomeSuccess             CreateOutcome = "success"
	OutcomeNameConflict        CreateOutcome = "name_conflict"
	OutcomeInsufficientCredits CreateOutcome = "insufficient_credits"
	OutcomeSkyTooCrowded       CreateOutcome = "sky_too_crowded"
	OutcomeInvalid             CreateOutcome = "invalid"
	OutcomeFailure             CreateOutcome = "failure"
)

// CreateStarResult содержит структурированный результат создания звезды.
type CreateStarResult struct {
	Outcome CreateOutcome `json:"outcome"`
	StarID  string        `json:"star_id,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

// Credits содержит остаток кредитов пользователя.
type Credits struct {
	Credits   int64 `json:"credits"`
	Unlimited bool  `json:"unlimited"`
}

// PurchaseStatus описывает статус покупки кредитов.
type PurchaseStatus string

const (
	PurchaseStatusNew       PurchaseStatus = "NEW"
	PurchaseStatusPending   PurchaseStatus = "PENDING"
	PurchaseStatusCanceled  PurchaseStatus = "CANCELED"
	PurchaseStatusFulfilled PurchaseStatus = "FULFILLED"
)

// Purchase описывает оплату пакета кредитов у платёжного провайдера.
type Purchase struct {
	SessionID string
	Status    PurchaseStatus
	Credits   *int64
	CreatedAt time.Time
}

// StarEventType описывает тип события неба.
type StarEventType string

const (
	EventStarCreated StarEventType = "star_created"
	EventStarDeleted StarEventType = "star_deleted"
)

// StarEvent рассылается подключённым клиентам при изменении неба.
type StarEvent struct {
	Type StarEventType `json:"type"`
	Star Star          `json:"star"`
}
