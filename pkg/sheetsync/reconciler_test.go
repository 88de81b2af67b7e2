package sheetsync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schoolops/assettrack/pkg/asset"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, asset.NewStore(db).AutoMigrate())
	require.NoError(t, NewLogStore(db).AutoMigrate())
	return db
}

// fakeSource is an in-memory TabularSource for reconciler tests.
type fakeSource struct {
	rows    []Row
	rowsErr error
	pingErr error

	appendCalls int
	updateCalls int
}

func (f *fakeSource) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeSource) Rows(ctx context.Context) ([]Row, error) {
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	out := make([]Row, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeSource) Append(ctx context.Context, row Row) (string, error) {
	f.appendCalls++
	ref := strconv.Itoa(len(f.rows) + 2)
	row.Ref = ref
	f.rows = append(f.rows, row)
	return ref, nil
}

func (f *fakeSource) Update(ctx context.Context, ref string, row Row) error {
	f.updateCalls++
	for i := range f.rows {
		if f.rows[i].Ref == ref {
			row.Ref = ref
			f.rows[i] = row
			return nil
		}
	}
	return fmt.Errorf("no row with ref %q", ref)
}

func newTestReconciler(t *testing.T, db *gorm.DB, source TabularSource) *Reconciler {
	t.Helper()
	return NewReconciler(db, source, slog.Default())
}

func sheetRow(ref, tag, name string, modified *time.Time) Row {
	return Row{
		Ref: ref,
		Values: map[string]string{
			ColTag:      tag,
			ColName:     name,
			ColCategory: "device",
			ColType:     "chromebook",
		},
		ModifiedAt: modified,
	}
}

func seedSyncAsset(t *testing.T, db *gorm.DB, tag string, updatedAt time.Time) *asset.Asset {
	t.Helper()
	a := &asset.Asset{
		Tag:       tag,
		Name:      "Chromebook " + tag,
		Category:  "device",
		Type:      "chromebook",
		Status:    asset.StatusAvailable,
		Condition: asset.ConditionGood,
		UpdatedAt: updatedAt,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func TestPullCreatesAssets(t *testing.T) {
	db := setupTestDB(t)
	modified := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []Row{
		sheetRow("2", "CB-001", "Chromebook 1", &modified),
		sheetRow("3", "CB-002", "Chromebook 2", nil),
	}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Equal(t, 2, entry.RecordsProcessed)
	assert.Zero(t, entry.ConflictCount)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Chromebook 1", a.Name)
	assert.Equal(t, "2", a.SheetRowRef)
	assert.Equal(t, asset.StatusAvailable, a.Status)
	assert.True(t, modified.Equal(a.UpdatedAt))
}

func TestPullAppliesNewerRow(t *testing.T) {
	db := setupTestDB(t)
	local := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedSyncAsset(t, db, "CB-001", local)

	newer := local.Add(time.Hour)
	row := sheetRow("2", "CB-001", "Renamed Chromebook", &newer)
	source := &fakeSource{rows: []Row{row}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Zero(t, entry.ConflictCount)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Chromebook", a.Name)
	assert.True(t, newer.Equal(a.UpdatedAt))
}

func TestPullPersistsRowMarkerAsUpdatedAt(t *testing.T) {
	db := setupTestDB(t)
	marker := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Edit One", &marker)}}
	r := newTestReconciler(t, db, source)

	_, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)

	// The applied row's marker must survive the write verbatim: it is the
	// conflict-resolution key, and a wall-clock stamp here would make every
	// later sheet edit older than the store.
	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.True(t, marker.Equal(a.UpdatedAt),
		"persisted updated_at %v, want row marker %v", a.UpdatedAt, marker)
}

func TestPullAppliesSuccessiveSheetEdits(t *testing.T) {
	db := setupTestDB(t)
	first := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Edit One", &first)}}
	r := newTestReconciler(t, db, source)

	_, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)

	// A second sheet edit with a strictly later marker must land on the
	// next pass, with no local changes in between and no conflict logged.
	second := first.Add(30 * time.Minute)
	source.rows[0] = sheetRow("2", "CB-001", "Edit Two", &second)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Zero(t, entry.ConflictCount)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, "Edit Two", a.Name)
	assert.True(t, second.Equal(a.UpdatedAt))
}

func TestPullSkipsStaleRowAsConflict(t *testing.T) {
	db := setupTestDB(t)
	local := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedSyncAsset(t, db, "CB-001", local)

	stale := local.Add(-time.Hour)
	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Old Name", &stale)}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ConflictCount)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, "Chromebook CB-001", a.Name, "local value wins")
}

func TestPullNilMarkerIsAuthoritative(t *testing.T) {
	db := setupTestDB(t)
	seedSyncAsset(t, db, "CB-001", time.Now().UTC())

	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Sheet Name", nil)}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Zero(t, entry.ConflictCount)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, "Sheet Name", a.Name)
}

func TestPullRowErrorsAreCountedNotFatal(t *testing.T) {
	db := setupTestDB(t)
	badStatus := sheetRow("3", "CB-002", "Chromebook 2", nil)
	badStatus.Values[ColStatus] = "exploded"
	source := &fakeSource{rows: []Row{
		{Ref: "2", Values: map[string]string{ColName: "No Tag"}},
		badStatus,
		sheetRow("4", "CB-003", "Chromebook 3", nil),
	}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, entry.Status)
	assert.Equal(t, 2, entry.ErrorCount)
	assert.Equal(t, 3, entry.RecordsProcessed)

	// The good row still landed.
	a, err := asset.NewStore(db).Get("CB-003")
	require.NoError(t, err)
	require.NotNil(t, a)
}

func TestPullDoesNotResurrectRetired(t *testing.T) {
	db := setupTestDB(t)
	a := seedSyncAsset(t, db, "CB-001", time.Now().UTC())
	require.NoError(t, db.Model(a).Update("status", asset.StatusRetired).Error)

	row := sheetRow("2", "CB-001", "Chromebook CB-001", nil)
	row.Values[ColStatus] = string(asset.StatusAvailable)
	source := &fakeSource{rows: []Row{row}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ConflictCount)

	got, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusRetired, got.Status)
}

func TestPushAppendsAssetsWithoutRef(t *testing.T) {
	db := setupTestDB(t)
	seedSyncAsset(t, db, "CB-001", time.Now().UTC())
	source := &fakeSource{}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Equal(t, 1, source.appendCalls)

	a, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.NotEmpty(t, a.SheetRowRef)
	assert.Equal(t, a.SheetRowRef, source.rows[0].Ref)
}

func TestPushUpdatesChangedRows(t *testing.T) {
	db := setupTestDB(t)
	local := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := seedSyncAsset(t, db, "CB-001", local)
	a.SheetRowRef = "2"
	require.NoError(t, db.Save(a).Error)

	older := local.Add(-time.Hour)
	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Stale Name", &older)}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 1, source.updateCalls)
	assert.Zero(t, entry.ConflictCount)
	assert.Equal(t, "Chromebook CB-001", source.rows[0].Values[ColName])
}

func TestPushSkipsNewerRowAsConflict(t *testing.T) {
	db := setupTestDB(t)
	local := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := seedSyncAsset(t, db, "CB-001", local)
	a.SheetRowRef = "2"
	require.NoError(t, db.Save(a).Error)

	newer := local.Add(time.Hour)
	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Newer Sheet Name", &newer)}}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ConflictCount)
	assert.Zero(t, source.updateCalls)
	assert.Equal(t, "Newer Sheet Name", source.rows[0].Values[ColName])
}

func TestPushExcludesRetired(t *testing.T) {
	db := setupTestDB(t)
	a := seedSyncAsset(t, db, "CB-001", time.Now().UTC())
	require.NoError(t, db.Model(a).Update("status", asset.StatusRetired).Error)
	source := &fakeSource{}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPush)
	require.NoError(t, err)
	assert.Zero(t, entry.RecordsProcessed)
	assert.Zero(t, source.appendCalls)
}

func TestTieFavorsStore(t *testing.T) {
	db := setupTestDB(t)
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := seedSyncAsset(t, db, "CB-001", ts)
	a.SheetRowRef = "2"
	require.NoError(t, db.Save(a).Error)

	source := &fakeSource{rows: []Row{sheetRow("2", "CB-001", "Sheet Name", &ts)}}
	r := newTestReconciler(t, db, source)

	_, err := r.Run(context.Background(), DirectionBidirectional)
	require.NoError(t, err)

	// Same timestamp, different values: the store's value ends up on both
	// sides.
	got, err := asset.NewStore(db).Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, "Chromebook CB-001", got.Name)
	assert.Equal(t, "Chromebook CB-001", source.rows[0].Values[ColName])
}

func TestBidirectionalSettles(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedSyncAsset(t, db, "CB-001", base)

	newer := base.Add(time.Hour)
	source := &fakeSource{rows: []Row{
		sheetRow("2", "CB-002", "Sheet Only", &newer),
	}}
	r := newTestReconciler(t, db, source)
	ctx := context.Background()

	// First pass moves records both ways.
	first, err := r.Run(ctx, DirectionBidirectional)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)

	// A second pass with no changes on either side is a no-op: nothing
	// applied, nothing conflicting, no source writes.
	appends, updates := source.appendCalls, source.updateCalls
	second, err := r.Run(ctx, DirectionBidirectional)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, second.Status)
	assert.Zero(t, second.ConflictCount)
	assert.Equal(t, appends, source.appendCalls)
	assert.Equal(t, updates, source.updateCalls)
}

func TestConnectivityFailureFailsPass(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeSource{rowsErr: fmt.Errorf("dial tcp: connection refused")}
	r := newTestReconciler(t, db, source)

	entry, err := r.Run(context.Background(), DirectionPull)
	require.Error(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Contains(t, entry.Message, "connection refused")

	// The failed pass still left its log entry.
	latest, err := NewLogStore(db).Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, StatusFailed, latest.Status)
}

func TestRunRejectsUnknownDirection(t *testing.T) {
	db := setupTestDB(t)
	r := newTestReconciler(t, db, &fakeSource{})

	_, err := r.Run(context.Background(), Direction("sideways"))
	require.Error(t, err)
}

func TestEveryPassWritesOneLogEntry(t *testing.T) {
	db := setupTestDB(t)
	r := newTestReconciler(t, db, &fakeSource{})
	ctx := context.Background()

	for _, d := range []Direction{DirectionPull, DirectionPush, DirectionBidirectional} {
		_, err := r.Run(ctx, d)
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&SyncLog{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
