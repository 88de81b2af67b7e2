package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolops/assettrack/pkg/asset"
)

func openTicketFor(t *testing.T, db *gorm.DB, e *Engine, tag string) *asset.RepairTicket {
	t.Helper()
	ctx := context.Background()
	_, err := e.Checkout(ctx, CheckoutRequest{Tag: tag, Recipient: "student-42"})
	require.NoError(t, err)
	_, err = e.Checkin(ctx, tag, asset.ConditionNeedsRepair, "cracked screen")
	require.NoError(t, err)

	var ticket asset.RepairTicket
	require.NoError(t, db.Where("asset_tag = ?", tag).First(&ticket).Error)
	return &ticket
}

func TestEngineTicketWorkflow(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)
	ctx := context.Background()
	seedAsset(t, db, "CB-001", asset.StatusAvailable)
	ticket := openTicketFor(t, db, e, "CB-001")

	updated, err := e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairInProgress)
	require.NoError(t, err)
	assert.Equal(t, asset.RepairInProgress, updated.Status)
	assert.Nil(t, updated.ResolvedAt)

	updated, err = e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairResolved)
	require.NoError(t, err)
	assert.Equal(t, asset.RepairResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)

	// The asset came back via check-in, so it is already available; the
	// resolve clears the needs_repair condition.
	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusAvailable, a.Status)
	assert.Equal(t, asset.ConditionGood, a.Condition)
}

func TestEngineTicketResolveRestoresMaintenanceAsset(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)
	ctx := context.Background()
	seedAsset(t, db, "CB-001", asset.StatusAvailable)
	seedAsset(t, db, "LOANER-1", asset.StatusAvailable)

	_, err := e.Checkout(ctx, CheckoutRequest{Tag: "CB-001", Recipient: "student-42"})
	require.NoError(t, err)
	_, err = e.LoanerSwap(ctx, "CB-001", "LOANER-1", "helpdesk", "keyboard dead")
	require.NoError(t, err)

	var ticket asset.RepairTicket
	require.NoError(t, db.Where("asset_tag = ?", "CB-001").First(&ticket).Error)

	_, err = e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairResolved)
	require.NoError(t, err)

	// The swap parked the broken asset in maintenance; resolution puts it
	// back in the available pool.
	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusAvailable, a.Status)
	assert.Equal(t, asset.ConditionGood, a.Condition)
}

func TestEngineTicketResolvedIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)
	ctx := context.Background()
	seedAsset(t, db, "CB-001", asset.StatusAvailable)
	ticket := openTicketFor(t, db, e, "CB-001")

	_, err := e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairResolved)
	require.NoError(t, err)

	_, err = e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairInProgress)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidTransition))
}

func TestEngineTicketBackwardMoveRejected(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)
	ctx := context.Background()
	seedAsset(t, db, "CB-001", asset.StatusAvailable)
	ticket := openTicketFor(t, db, e, "CB-001")

	_, err := e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairInProgress)
	require.NoError(t, err)

	_, err = e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairTriage)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidTransition))
}

func TestEngineTicketNotFound(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)

	_, err := e.UpdateRepairTicket(context.Background(), "missing", asset.RepairResolved)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeTicketNotFound))
}

func TestEngineTicketResolveAllowsNewTicket(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)
	ctx := context.Background()
	seedAsset(t, db, "CB-001", asset.StatusAvailable)
	ticket := openTicketFor(t, db, e, "CB-001")

	_, err := e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairResolved)
	require.NoError(t, err)

	// A fresh needs_repair check-in after resolution opens a second ticket:
	// the dedup only counts unresolved ones.
	openTicketFor(t, db, e, "CB-001")

	var count int64
	require.NoError(t, db.Model(&asset.RepairTicket{}).
		Where("asset_tag = ?", "CB-001").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestEngineTicketResolveLeavesRetiredAssetAlone(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(t, db)
	ctx := context.Background()
	seedAsset(t, db, "CB-001", asset.StatusAvailable)
	ticket := openTicketFor(t, db, e, "CB-001")

	require.NoError(t, e.Retire(ctx, "CB-001"))

	_, err := e.UpdateRepairTicket(ctx, ticket.ID, asset.RepairResolved)
	require.NoError(t, err)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusRetired, a.Status)
}
