package publisher

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestAwaitConfirm_SkipsLateConfirmations(t *testing.T) {
	confirm := make(chan amqp.Confirmation, 2)

	// Tag 1 timed out earlier; its ack lands while tag 2 waits.
	confirm <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	confirm <- amqp.Confirmation{DeliveryTag: 2, Ack: false}

	err := awaitConfirm(context.Background(), confirm, 2)
	assert.ErrorContains(t, err, "nacked")
}

func TestAwaitConfirm_StaleAckDoesNotConfirmNextPublish(t *testing.T) {
	confirm := make(chan amqp.Confirmation, 1)
	confirm <- amqp.Confirmation{DeliveryTag: 4, Ack: true}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := awaitConfirm(ctx, confirm, 5)
	assert.ErrorContains(t, err, "timeout")
}

func TestAwaitConfirm_Outcomes(t *testing.T) {
	confirm := make(chan amqp.Confirmation, 1)
	confirm <- amqp.Confirmation{DeliveryTag: 3, Ack: true}
	assert.NoError(t, awaitConfirm(context.Background(), confirm, 3))

	close(confirm)
	assert.ErrorContains(t, awaitConfirm(context.Background(), confirm, 4), "closed")
}
