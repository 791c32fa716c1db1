package rabbitmq

// BillingExchange обменник биллинговых событий подписок.
const BillingExchange = "billing"

// Ключи маршрутизации биллинговых событий.
const (
	RoutingKeyRenewed       = "renewed"
	RoutingKeyPaymentFailed = "payment_failed"
	RoutingKeyExpired       = "expired"
	RoutingKeyCancelled     = "cancelled"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает очереди биллинговых событий.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "billing.renewed", RoutingKey: RoutingKeyRenewed},
		{QueueName: "billing.payment_failed", RoutingKey: RoutingKeyPaymentFailed},
		{QueueName: "billing.expired", RoutingKey: RoutingKeyExpired},
		{QueueName: "billing.cancelled", RoutingKey: RoutingKeyCancelled},
	}
}
