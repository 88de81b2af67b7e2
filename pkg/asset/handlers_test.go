package asset

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestRouter(t *testing.T, requireOperator func(http.Handler) http.Handler) (http.Handler, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	r := Router(NewStore(db), NewCheckoutStore(db), requireOperator)
	return r, db
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAssetHandler(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	rec := doJSON(t, r, http.MethodPost, "/", map[string]any{
		"tag":      "CB-001",
		"name":     "Chromebook 1",
		"category": "device",
		"type":     "chromebook",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CB-001", resp["tag"])
	assert.Equal(t, "available", resp["status"])
	assert.Equal(t, "good", resp["condition"])
}

func TestCreateAssetHandlerDuplicate(t *testing.T) {
	r, _ := setupTestRouter(t, nil)
	body := map[string]any{"tag": "CB-001", "name": "Chromebook 1"}

	rec := doJSON(t, r, http.MethodPost, "/", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateAssetHandlerValidation(t *testing.T) {
	r, _ := setupTestRouter(t, nil)
	rec := doJSON(t, r, http.MethodPost, "/", map[string]any{"tag": "CB-001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssetHandler(t *testing.T) {
	r, db := setupTestRouter(t, nil)
	require.NoError(t, NewStore(db).Create(testAsset("CB-001")))

	rec := doJSON(t, r, http.MethodGet, "/CB-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Asset     map[string]any `json:"asset"`
		Checkouts []any          `json:"checkouts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CB-001", resp.Asset["tag"])
	assert.Empty(t, resp.Checkouts)

	rec = doJSON(t, r, http.MethodGet, "/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAssetsHandler(t *testing.T) {
	r, db := setupTestRouter(t, nil)
	store := NewStore(db)
	require.NoError(t, store.Create(testAsset("CB-001")))
	retired := testAsset("CB-002")
	retired.Status = StatusRetired
	require.NoError(t, store.Create(retired))

	rec := doJSON(t, r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Assets    []map[string]any `json:"assets"`
		TotalSize int              `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalSize)

	rec = doJSON(t, r, http.MethodGet, "/?includeRetired=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalSize)
}

func TestPatchAssetHandler(t *testing.T) {
	r, db := setupTestRouter(t, nil)
	store := NewStore(db)
	require.NoError(t, store.Create(testAsset("CB-001")))

	rec := doJSON(t, r, http.MethodPatch, "/CB-001", map[string]any{
		"location": "Room 204",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := store.Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, "Room 204", got.Location)
	assert.Equal(t, "Chromebook CB-001", got.Name, "untouched fields keep their values")
}

func TestPatchAssetHandlerCannotSetStatus(t *testing.T) {
	r, db := setupTestRouter(t, nil)
	store := NewStore(db)
	require.NoError(t, store.Create(testAsset("CB-001")))

	// Status and condition are not part of the patch surface; sending them
	// is simply ignored.
	rec := doJSON(t, r, http.MethodPatch, "/CB-001", map[string]any{
		"status":    "retired",
		"condition": "needs_repair",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := store.Get("CB-001")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, got.Status)
	assert.Equal(t, ConditionGood, got.Condition)
}

func TestSearchAssetsHandler(t *testing.T) {
	r, db := setupTestRouter(t, nil)
	store := NewStore(db)
	require.NoError(t, store.Create(testAsset("CB-001")))
	require.NoError(t, store.Create(&Asset{
		Tag: "PROJ-01", Name: "Projector", Category: "av", Type: "projector",
		SerialNumber: "SN-778899",
	}))

	rec := doJSON(t, r, http.MethodGet, "/search?q=778899", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Assets []map[string]any `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "PROJ-01", resp.Assets[0]["tag"])
}

func TestRouterOperatorGuard(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	r, db := setupTestRouter(t, deny)
	require.NoError(t, NewStore(db).Create(testAsset("CB-001")))

	// Mutations are guarded.
	rec := doJSON(t, r, http.MethodPost, "/", map[string]any{"tag": "X", "name": "Y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, r, http.MethodPatch, "/CB-001", map[string]any{"location": "A"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reads are open.
	rec = doJSON(t, r, http.MethodGet, "/CB-001", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
