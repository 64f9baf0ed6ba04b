package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/craftmart/fulfillment-backend/pkg/config"
	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	"github.com/craftmart/fulfillment-backend/pkg/outbox"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/payloads"
)

func testPubSubConfig() config.PubSubConfig {
	return config.PubSubConfig{
		OrdersTopic:       "cm-order-events",
		InventoryTopic:    "cm-inventory-events",
		NotificationTopic: "cm-notification-events",
	}
}

func envelopeWith(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return payload
}

func TestResolveRoutesByEventType(t *testing.T) {
	reg := NewEventRegistry(testPubSubConfig())

	event := &models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateWarehouse,
		AggregateID:   uuid.New(),
		Payload: envelopeWith(t, payloads.StockAdjustedEvent{
			WarehouseID: uuid.New(),
			ProductID:   uuid.New(),
			Operation:   "addition",
			Delta:       10,
			NewQty:      25,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	require.Equal(t, "cm-inventory-events", resolved.Topic)

	decoded, ok := resolved.Payload.(*payloads.StockAdjustedEvent)
	require.True(t, ok)
	require.EqualValues(t, 10, decoded.Delta)
	require.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveUnknownTypeIsNonRetryable(t *testing.T) {
	reg := NewEventRegistry(testPubSubConfig())

	event := &models.OutboxEvent{
		ID:        uuid.New(),
		EventType: enums.OutboxEventType("warehouse.exploded"),
		Payload:   envelopeWith(t, map[string]string{}),
	}

	_, err := reg.Resolve(event)
	require.Error(t, err)

	var nonRetryable *NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}

func TestResolveMalformedEnvelopeIsNonRetryable(t *testing.T) {
	reg := NewEventRegistry(testPubSubConfig())

	event := &models.OutboxEvent{
		ID:        uuid.New(),
		EventType: enums.EventOrderStatusChanged,
		Payload:   json.RawMessage(`{"version": "not-a-number"`),
	}

	_, err := reg.Resolve(event)
	require.Error(t, err)

	var nonRetryable *NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}

func TestResolveMissingTopicIsNonRetryable(t *testing.T) {
	cfg := testPubSubConfig()
	cfg.NotificationTopic = ""
	reg := NewEventRegistry(cfg)

	event := &models.OutboxEvent{
		ID:        uuid.New(),
		EventType: enums.EventPaymentReconciled,
		Payload:   envelopeWith(t, payloads.PaymentReconciledEvent{OrderID: uuid.New()}),
	}

	_, err := reg.Resolve(event)
	require.Error(t, err)

	var nonRetryable *NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}
