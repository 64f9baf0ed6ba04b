package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftmart/fulfillment-backend/pkg/db/models"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

func newLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE inventory_ledger_entries (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		operation TEXT NOT NULL,
		previous_qty INTEGER NOT NULL,
		new_qty INTEGER NOT NULL,
		reason TEXT,
		actor_id TEXT NOT NULL,
		created_at DATETIME
	)`).Error)
	return db
}

func newLedgerService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestRecordWritesBalancedEntry(t *testing.T) {
	db := newLedgerTestDB(t)
	svc := newLedgerService(t, db)

	productID := uuid.New()
	warehouseID := uuid.New()

	entry, err := svc.Record(context.Background(), db, RecordEntryInput{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Delta:       10,
		Operation:   enums.LedgerOpAddition,
		PreviousQty: 0,
		NewQty:      10,
		Reason:      "initial stock",
		ActorID:     uuid.New(),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, entry.ID)
	require.NotNil(t, entry.Reason)

	var stored models.InventoryLedgerEntry
	require.NoError(t, db.First(&stored, "id = ?", entry.ID).Error)
	require.Equal(t, 10, stored.Delta)
	require.Equal(t, enums.LedgerOpAddition, stored.Operation)
}

func TestRecordRejectsUnbalancedEntry(t *testing.T) {
	db := newLedgerTestDB(t)
	svc := newLedgerService(t, db)

	_, err := svc.Record(context.Background(), db, RecordEntryInput{
		ProductID:   uuid.New(),
		WarehouseID: uuid.New(),
		Delta:       5,
		Operation:   enums.LedgerOpAddition,
		PreviousQty: 10,
		NewQty:      14,
		ActorID:     uuid.New(),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var count int64
	require.NoError(t, db.Model(&models.InventoryLedgerEntry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRecordRejectsZeroDelta(t *testing.T) {
	db := newLedgerTestDB(t)
	svc := newLedgerService(t, db)

	_, err := svc.Record(context.Background(), db, RecordEntryInput{
		ProductID:   uuid.New(),
		WarehouseID: uuid.New(),
		Delta:       0,
		Operation:   enums.LedgerOpAddition,
		PreviousQty: 10,
		NewQty:      10,
		ActorID:     uuid.New(),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHistoryRejectsMissingProduct(t *testing.T) {
	db := newLedgerTestDB(t)
	svc := newLedgerService(t, db)

	_, err := svc.History(context.Background(), uuid.Nil, 10)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.HistoryForWarehouse(context.Background(), uuid.Nil, uuid.New(), 10)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuditQuantityExcludesReservations(t *testing.T) {
	db := newLedgerTestDB(t)
	svc := newLedgerService(t, db)

	productID := uuid.New()
	warehouseID := uuid.New()
	actorID := uuid.New()
	ctx := context.Background()

	_, err := svc.Record(ctx, db, RecordEntryInput{
		ProductID: productID, WarehouseID: warehouseID, ActorID: actorID,
		Delta: 20, Operation: enums.LedgerOpAddition, PreviousQty: 0, NewQty: 20,
	})
	require.NoError(t, err)

	// Reservation entries track the reserved counter, not quantity.
	_, err = svc.Record(ctx, db, RecordEntryInput{
		ProductID: productID, WarehouseID: warehouseID, ActorID: actorID,
		Delta: 3, Operation: enums.LedgerOpReservation, PreviousQty: 0, NewQty: 3,
	})
	require.NoError(t, err)

	_, err = svc.Record(ctx, db, RecordEntryInput{
		ProductID: productID, WarehouseID: warehouseID, ActorID: actorID,
		Delta: -5, Operation: enums.LedgerOpSubtraction, PreviousQty: 20, NewQty: 15,
	})
	require.NoError(t, err)

	sum, err := svc.AuditQuantity(ctx, warehouseID, productID)
	require.NoError(t, err)
	require.EqualValues(t, 15, sum)
}

func TestHistoryFiltersByWarehouse(t *testing.T) {
	db := newLedgerTestDB(t)
	svc := newLedgerService(t, db)

	productID := uuid.New()
	warehouseA := uuid.New()
	warehouseB := uuid.New()
	actorID := uuid.New()
	ctx := context.Background()

	for _, warehouseID := range []uuid.UUID{warehouseA, warehouseA, warehouseB} {
		_, err := svc.Record(ctx, db, RecordEntryInput{
			ProductID: productID, WarehouseID: warehouseID, ActorID: actorID,
			Delta: 1, Operation: enums.LedgerOpAddition, PreviousQty: 0, NewQty: 1,
		})
		require.NoError(t, err)
	}

	all, err := svc.History(ctx, productID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	scoped, err := svc.HistoryForWarehouse(ctx, warehouseA, productID, 0)
	require.NoError(t, err)
	require.Len(t, scoped, 2)
}
