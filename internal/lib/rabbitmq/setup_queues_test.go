package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBillingQueues(t *testing.T) {
	queues := GetBillingQueues()

	assert.Len(t, queues, 4)

	keys := make(map[string]string, len(queues))
	for _, q := range queues {
		keys[q.RoutingKey] = q.QueueName
	}

	assert.Equal(t, "billing.renewed", keys[RoutingKeyRenewed])
	assert.Equal(t, "billing.payment_failed", keys[RoutingKeyPaymentFailed])
	assert.Equal(t, "billing.expired", keys[RoutingKeyExpired])
	assert.Equal(t, "billing.cancelled", keys[RoutingKeyCancelled])
}
