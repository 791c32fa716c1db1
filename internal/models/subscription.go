// Package models содержит доменные структуры сервиса квот:
// подписки с тарифами и биллинговыми циклами, периоды бесплатного
// использования и вспомогательные типы для JSON-запросов.
package models

import "time"

// Tier тариф подписки, определяет лимит операций за биллинговый период.
type Tier string

// Поддерживаемые тарифы.
const (
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Cap возвращает лимит операций за период для тарифа.
// Ноль означает отсутствие лимита (enterprise).
func (t Tier) Cap() int {
	switch t {
	case TierBasic:
		return 10
	case TierPro:
		return 100
	default:
		return 0
	}
}

// Unbounded сообщает, что тариф не ограничен по количеству операций.
func (t Tier) Unbounded() bool {
	return t == TierEnterprise
}

// BillingCycle периодичность списания по подписке.
type BillingCycle string

// Поддерживаемые биллинговые циклы.
const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Advance возвращает дату окончания следующего периода:
// ровно одна единица цикла от переданной даты.
func (c BillingCycle) Advance(t time.Time) time.Time {
	if c == CycleYearly {
		return t.Add(365 * 24 * time.Hour)
	}
	return t.Add(30 * 24 * time.Hour)
}

// Status состояние подписки. Единый перечислимый тип вместо пары
// булевых флагов, чтобы недопустимые комбинации были непредставимы.
type Status string

// Возможные состояния подписки. Cancelled и Expired терминальны.
const (
	StatusActiveCurrent Status = "active_current"
	StatusActivePastDue Status = "active_past_due"
	StatusCancelled     Status = "cancelled"
	StatusExpired       Status = "expired"
)

// Active сообщает, активна ли подписка (в любом биллинговом состоянии).
func (s Status) Active() bool {
	return s == StatusActiveCurrent || s == StatusActivePastDue
}

// Terminal сообщает, что из состояния нет переходов.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// BillingStatus возвращает биллинговую составляющую состояния.
func (s Status) BillingStatus() string {
	if s == StatusActivePastDue {
		return "past_due"
	}
	return "current"
}

// Subscription основная модель подписки, используемая в бизнес-логике
// и хранилище. TotalHistoricalUsed монотонен и никогда не обнуляется,
// UsedInPeriod обнуляется при каждом успешном продлении.
type Subscription struct {
	ID                  string       `json:"id"`
	Username            string       `json:"username"`
	Tier                Tier         `json:"tier"`
	BillingCycle        BillingCycle `json:"billing_cycle"`
	StartDate           time.Time    `json:"start_date"`
	CurrentPeriodEnd    time.Time    `json:"current_period_end"`
	AutoRenew           bool         `json:"auto_renew"`
	Status              Status       `json:"status"`
	UsedInPeriod        int          `json:"used_in_period"`
	TotalHistoricalUsed int          `json:"total_historical_used"`
}

// DummySubscription используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Subscription.
type DummySubscription struct {
	Tier         string `json:"tier" validate:"required,oneof=basic pro enterprise"`    // Тариф
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly yearly"` // Цикл списания
	AutoRenew    bool   `json:"auto_renew"`                                             // Автопродление
}

// DummyQuestion используется для приёма вопроса из JSON-запроса.
type DummyQuestion struct {
	Question string `json:"question" validate:"required,min=1,max=4000"` // Текст вопроса
}
