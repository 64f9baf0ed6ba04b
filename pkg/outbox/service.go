package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

const envelopeVersion = 1

// Service writes domain events into the outbox inside the caller's
// transaction. The publisher worker delivers them asynchronously.
type Service interface {
	Emit(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, actor *ActorRef, data any) error
	EmitIfNotExists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, actor *ActorRef, data any) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Emit(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, actor *ActorRef, data any) error {
	event, err := buildEvent(eventType, aggregateType, aggregateID, actor, data)
	if err != nil {
		return err
	}
	return s.repo.Insert(tx, event)
}

// EmitIfNotExists skips the insert when an event of the same type already
// exists for the aggregate. Used for one-shot events like shipment creation.
func (s *service) EmitIfNotExists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, actor *ActorRef, data any) error {
	exists, err := s.repo.Exists(tx, string(eventType), aggregateID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.Emit(tx, eventType, aggregateType, aggregateID, actor, data)
}

func buildEvent(eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, actor *ActorRef, data any) (*models.OutboxEvent, error) {
	if !eventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown outbox event type")
	}
	if !aggregateType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown outbox aggregate type")
	}
	if aggregateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "aggregate id is required")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to marshal event data")
	}

	envelope := PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Data:       raw,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to marshal event envelope")
	}

	return &models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
	}, nil
}
