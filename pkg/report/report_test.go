package report

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
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
	return db
}

func setupReporter(t *testing.T) (*gorm.DB, http.Handler) {
	t.Helper()
	db := setupTestDB(t)
	reporter := NewReporter(asset.NewStore(db), asset.NewCheckoutStore(db))
	return db, Router(reporter)
}

func fetchCSV(t *testing.T, h http.Handler, path string) [][]string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	return rows
}

func seedReportAsset(t *testing.T, db *gorm.DB, tag string, status asset.Status) {
	t.Helper()
	require.NoError(t, asset.NewStore(db).Create(&asset.Asset{
		Tag:      tag,
		Name:     "Asset " + tag,
		Category: "device",
		Type:     "chromebook",
		Status:   status,
	}))
}

func TestStatusSummaryReport(t *testing.T) {
	db, h := setupReporter(t)
	seedReportAsset(t, db, "A-1", asset.StatusAvailable)
	seedReportAsset(t, db, "A-2", asset.StatusAvailable)
	seedReportAsset(t, db, "A-3", asset.StatusCheckedOut)
	seedReportAsset(t, db, "A-4", asset.StatusRetired)

	rows := fetchCSV(t, h, "/status_summary.csv")
	require.Equal(t, []string{"status", "count"}, rows[0])

	counts := map[string]string{}
	for _, row := range rows[1:] {
		counts[row[0]] = row[1]
	}
	assert.Equal(t, "2", counts["available"])
	assert.Equal(t, "1", counts["checked_out"])
	assert.Equal(t, "1", counts["retired"])
	assert.Equal(t, "0", counts["maintenance"])
}

func TestOpenCheckoutsReport(t *testing.T) {
	db, h := setupReporter(t)
	seedReportAsset(t, db, "A-1", asset.StatusCheckedOut)

	now := time.Now().UTC()
	closedAt := now.Add(-time.Hour)
	checkouts := asset.NewCheckoutStore(db)
	require.NoError(t, checkouts.Create(&asset.Checkout{
		ID: uuid.New().String(), AssetTag: "A-1", Recipient: "student-1",
		IssuedBy: "helpdesk", CheckoutAt: now,
	}))
	require.NoError(t, checkouts.Create(&asset.Checkout{
		ID: uuid.New().String(), AssetTag: "A-1", Recipient: "student-0",
		IssuedBy: "helpdesk", CheckoutAt: now.Add(-2 * time.Hour), CheckinAt: &closedAt,
	}))

	rows := fetchCSV(t, h, "/open_checkouts.csv")
	require.Len(t, rows, 2, "header plus the one open checkout")
	assert.Equal(t, "student-1", rows[1][1])
}

func TestOverdueReport(t *testing.T) {
	db, h := setupReporter(t)
	seedReportAsset(t, db, "A-1", asset.StatusCheckedOut)

	due := time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, asset.NewCheckoutStore(db).Create(&asset.Checkout{
		ID: uuid.New().String(), AssetTag: "A-1", Recipient: "student-1",
		IssuedBy: "helpdesk", CheckoutAt: due.Add(-time.Hour), ExpectedReturnAt: &due,
	}))

	rows := fetchCSV(t, h, "/overdue.csv")
	require.Len(t, rows, 2)
	assert.Equal(t, "days_overdue", rows[0][len(rows[0])-1])
	assert.Equal(t, "3", rows[1][len(rows[1])-1])
}

func TestInventoryReportExcludesRetired(t *testing.T) {
	db, h := setupReporter(t)
	seedReportAsset(t, db, "A-1", asset.StatusAvailable)
	seedReportAsset(t, db, "A-2", asset.StatusRetired)

	rows := fetchCSV(t, h, "/inventory.csv")
	require.Len(t, rows, 2)
	assert.Equal(t, "A-1", rows[1][0])
}

func TestUnknownReport(t *testing.T) {
	_, h := setupReporter(t)
	req := httptest.NewRequest(http.MethodGet, "/everything.csv", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
