package models

// UsagePeriod счётчик бесплатных операций пользователя за календарный
// месяц. Ключ — пара (username, year_month), запись создаётся лениво
// при первом обращении в новом месяце и никогда не удаляется.
type UsagePeriod struct {
	Username  string `json:"username"`
	YearMonth string `json:"year_month"` // Формат "2006-01"
	FreeUsed  int    `json:"free_used"`
}

// AllocationResult итог списания одной операции: пул, с которого она
// списана, и подсказка об остатке в этом пуле. ChargedAgainst равен
// "free" либо ID подписки.
type AllocationResult struct {
	ChargedAgainst string `json:"charged_against"`
	RemainingHint  int    `json:"remaining_hint"` // -1 для безлимитного пула
}

// ChargedFree значение ChargedAgainst при списании с бесплатного пула.
const ChargedFree = "free"

// ChatAnswer ответ на вопрос пользователя вместе с информацией о том,
// с какого пула была списана операция.
type ChatAnswer struct {
	Answer         string `json:"answer"`
	ChargedAgainst string `json:"charged_against"`
	RemainingHint  int    `json:"remaining_hint"`
}

// BillingEvent сообщение о переходе подписки между состояниями,
// публикуемое в очередь биллинговых событий.
type BillingEvent struct {
	SubscriptionID string `json:"subscription_id"`
	Username       string `json:"username"`
	Event          string `json:"event"`
	Status         Status `json:"status"`
}
