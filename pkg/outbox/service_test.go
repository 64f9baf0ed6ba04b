package outbox

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
		`CREATE TABLE outbox_dlq (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			error_message TEXT,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			failed_at DATETIME,
			created_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func insertEvent(t *testing.T, db *gorm.DB, svc Service, aggregateID uuid.UUID) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(tx, enums.EventOrderStatusChanged, enums.AggregateOrder, aggregateID, nil, map[string]string{"toStatus": "confirmed"})
	})
	require.NoError(t, err)
}

func TestEmitWritesEnvelope(t *testing.T) {
	db := newOutboxTestDB(t)
	svc, err := NewService(NewRepository())
	require.NoError(t, err)

	orderID := uuid.New()
	actor := &ActorRef{ActorID: uuid.New(), Role: enums.ActorRoleSystem}

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(tx, enums.EventOrderStatusChanged, enums.AggregateOrder, orderID, actor, map[string]string{
			"fromStatus": "pending",
			"toStatus":   "confirmed",
		})
	})
	require.NoError(t, err)

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, enums.EventOrderStatusChanged, stored.EventType)
	require.Equal(t, orderID, stored.AggregateID)
	require.Nil(t, stored.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(stored.Payload, &envelope))
	require.Equal(t, envelopeVersion, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	require.Equal(t, actor.ActorID, envelope.Actor.ActorID)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	db := newOutboxTestDB(t)
	svc, err := NewService(NewRepository())
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(tx, enums.OutboxEventType("order.teleported"), enums.AggregateOrder, uuid.New(), nil, nil)
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitIfNotExistsSkipsDuplicate(t *testing.T) {
	db := newOutboxTestDB(t)
	svc, err := NewService(NewRepository())
	require.NoError(t, err)

	orderID := uuid.New()
	for i := 0; i < 3; i++ {
		err = db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(tx, enums.EventShipmentCreated, enums.AggregateOrder, orderID, nil, map[string]string{"trackingId": "AWB123"})
		})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestFetchUnpublishedForPublishHonorsAttemptCeiling(t *testing.T) {
	db := newOutboxTestDB(t)
	repo := NewRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	insertEvent(t, db, svc, uuid.New())
	insertEvent(t, db, svc, uuid.New())

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 2)

	// Exhaust one event's attempts.
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, events[0].ID, "publish failed")
	}))

	err = db.Transaction(func(tx *gorm.DB) error {
		pending, ferr := repo.FetchUnpublishedForPublish(tx, 10, 5)
		if ferr != nil {
			return ferr
		}
		require.Len(t, pending, 1)
		require.Equal(t, events[1].ID, pending[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMarkPublishedClearsError(t *testing.T) {
	db := newOutboxTestDB(t)
	repo := NewRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	insertEvent(t, db, svc, uuid.New())

	var event models.OutboxEvent
	require.NoError(t, db.First(&event).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkFailedTx(tx, event.ID, "topic unavailable")
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkPublishedTx(tx, event.ID)
	}))

	require.NoError(t, db.First(&event, "id = ?", event.ID).Error)
	require.NotNil(t, event.PublishedAt)
	require.Nil(t, event.LastError)
	require.Equal(t, 1, event.AttemptCount)
	require.WithinDuration(t, time.Now().UTC(), *event.PublishedAt, time.Minute)
}
