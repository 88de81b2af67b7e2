package asset

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, NewStore(db).AutoMigrate())
	return db
}

func testAsset(tag string) *Asset {
	return &Asset{
		Tag:      tag,
		Name:     "Chromebook " + tag,
		Category: "device",
		Type:     "chromebook",
	}
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	store := NewStore(setupTestDB(t))
	a, err := store.Get("NOPE")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestStoreCreateDefaults(t *testing.T) {
	store := NewStore(setupTestDB(t))
	a := testAsset("CB-001")
	require.NoError(t, store.Create(a))

	got, err := store.Get("CB-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusAvailable, got.Status)
	assert.Equal(t, ConditionGood, got.Condition)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStoreCreateDuplicateTagFails(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.Create(testAsset("CB-001")))
	assert.Error(t, store.Create(testAsset("CB-001")))
}

func TestStoreListExcludesRetiredByDefault(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	require.NoError(t, store.Create(testAsset("CB-001")))
	retired := testAsset("CB-002")
	retired.Status = StatusRetired
	require.NoError(t, store.Create(retired))

	records, _, total, err := store.List(ListFilter{}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "CB-001", records[0].Tag)

	// includeRetired brings it back.
	records, _, _, err = store.List(ListFilter{IncludeRetired: true}, 10, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// As does asking for retired status explicitly.
	records, _, _, err = store.List(ListFilter{Status: StatusRetired}, 10, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CB-002", records[0].Tag)
}

func TestStoreListFilters(t *testing.T) {
	store := NewStore(setupTestDB(t))
	cb := testAsset("CB-001")
	require.NoError(t, store.Create(cb))
	proj := &Asset{Tag: "PROJ-01", Name: "Projector", Category: "av", Type: "projector"}
	require.NoError(t, store.Create(proj))

	records, _, _, err := store.List(ListFilter{Category: "av"}, 10, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PROJ-01", records[0].Tag)

	records, _, _, err = store.List(ListFilter{Search: "Projec"}, 10, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PROJ-01", records[0].Tag)
}

func TestStoreListPagination(t *testing.T) {
	store := NewStore(setupTestDB(t))
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Create(testAsset(fmt.Sprintf("CB-%03d", i))))
	}

	page1, token, total, err := store.List(ListFilter{}, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	require.NotEmpty(t, token)

	page2, token2, _, err := store.List(ListFilter{}, 2, token)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "CB-003", page2[0].Tag)

	page3, token3, _, err := store.List(ListFilter{}, 2, token2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, token3)
}

func TestStoreSearchExcludesRetired(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.Create(testAsset("CB-001")))
	retired := testAsset("CB-002")
	retired.Status = StatusRetired
	require.NoError(t, store.Create(retired))

	records, err := store.Search("CB", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CB-001", records[0].Tag)
}

func TestStoreCountByStatus(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.Create(testAsset("CB-001")))
	require.NoError(t, store.Create(testAsset("CB-002")))
	out := testAsset("CB-003")
	out.Status = StatusCheckedOut
	require.NoError(t, store.Create(out))

	counts, err := store.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusAvailable])
	assert.Equal(t, 1, counts[StatusCheckedOut])
}

func TestStoreListForExport(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.Create(testAsset("CB-002")))
	require.NoError(t, store.Create(testAsset("CB-001")))
	retired := testAsset("CB-003")
	retired.Status = StatusRetired
	require.NoError(t, store.Create(retired))

	records, err := store.ListForExport()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CB-001", records[0].Tag, "ordered by tag")
}

func TestAssetIsOut(t *testing.T) {
	a := testAsset("CB-001")
	a.Status = StatusCheckedOut
	assert.True(t, a.IsOut())
	a.Status = StatusDeployed
	assert.True(t, a.IsOut())
	a.Status = StatusAvailable
	assert.False(t, a.IsOut())
}

func TestCheckoutIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	c := &Checkout{CheckoutAt: now.Add(-2 * time.Hour), ExpectedReturnAt: &past}
	assert.True(t, c.IsOverdue(now))

	c.ExpectedReturnAt = &future
	assert.False(t, c.IsOverdue(now))

	c.ExpectedReturnAt = &past
	c.CheckinAt = &now
	assert.False(t, c.IsOverdue(now), "closed checkouts are never overdue")

	c.CheckinAt = nil
	c.ExpectedReturnAt = nil
	assert.False(t, c.IsOverdue(now), "no due date, never overdue")
}
