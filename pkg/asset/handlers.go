package asset

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// assetResponse is the API representation of an asset.
type assetResponse struct {
	Tag                string  `json:"tag"`
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	Type               string  `json:"type"`
	SerialNumber       string  `json:"serialNumber,omitempty"`
	Status             string  `json:"status"`
	Condition          string  `json:"condition"`
	Location           string  `json:"location,omitempty"`
	Notes              string  `json:"notes,omitempty"`
	PurchaseDate       string  `json:"purchaseDate,omitempty"`
	PurchaseCost       float64 `json:"purchaseCost,omitempty"`
	SheetRowRef        string  `json:"sheetRowRef,omitempty"`
	RepeatBreakageFlag bool    `json:"repeatBreakageFlag,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

func toAssetResponse(a *Asset) assetResponse {
	resp := assetResponse{
		Tag:                a.Tag,
		Name:               a.Name,
		Category:           a.Category,
		Type:               a.Type,
		SerialNumber:       a.SerialNumber,
		Status:             string(a.Status),
		Condition:          string(a.Condition),
		Location:           a.Location,
		Notes:              a.Notes,
		SheetRowRef:        a.SheetRowRef,
		RepeatBreakageFlag: a.RepeatBreakageFlag,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          a.UpdatedAt.Format(time.RFC3339),
	}
	if a.PurchaseDate != nil {
		resp.PurchaseDate = a.PurchaseDate.Format("2006-01-02")
	}
	if a.PurchaseCost != nil {
		resp.PurchaseCost = *a.PurchaseCost
	}
	return resp
}

// checkoutResponse is the API representation of a checkout record.
type checkoutResponse struct {
	ID               string `json:"id"`
	AssetTag         string `json:"assetTag"`
	Recipient        string `json:"recipient"`
	IssuedBy         string `json:"issuedBy"`
	CheckoutAt       string `json:"checkoutAt"`
	ExpectedReturnAt string `json:"expectedReturnAt,omitempty"`
	CheckinAt        string `json:"checkinAt,omitempty"`
	CheckinCondition string `json:"checkinCondition,omitempty"`
	CheckinNotes     string `json:"checkinNotes,omitempty"`
	Open             bool   `json:"open"`
}

// ToCheckoutResponse converts a checkout record to its API shape.
func ToCheckoutResponse(c *Checkout) any {
	resp := checkoutResponse{
		ID:               c.ID,
		AssetTag:         c.AssetTag,
		Recipient:        c.Recipient,
		IssuedBy:         c.IssuedBy,
		CheckoutAt:       c.CheckoutAt.Format(time.RFC3339),
		CheckinCondition: string(c.CheckinCondition),
		CheckinNotes:     c.CheckinNotes,
		Open:             c.IsOpen(),
	}
	if c.ExpectedReturnAt != nil {
		resp.ExpectedReturnAt = c.ExpectedReturnAt.Format(time.RFC3339)
	}
	if c.CheckinAt != nil {
		resp.CheckinAt = c.CheckinAt.Format(time.RFC3339)
	}
	return resp
}

// ListAssetsHandler handles GET /api/v1/assets
// Query params: status, category, type, search, includeRetired, pageSize, pageToken
func ListAssetsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			Status:   Status(r.URL.Query().Get("status")),
			Category: r.URL.Query().Get("category"),
			Type:     r.URL.Query().Get("type"),
			Search:   r.URL.Query().Get("search"),
		}
		if v := r.URL.Query().Get("includeRetired"); v != "" {
			filter.IncludeRetired, _ = strconv.ParseBool(v)
		}

		pageSize := 25
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := store.List(filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list assets: %v", err))
			return
		}

		assets := make([]assetResponse, len(records))
		for i := range records {
			assets[i] = toAssetResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"assets":        assets,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// createAssetRequest is the body for POST /api/v1/assets.
type createAssetRequest struct {
	Tag          string   `json:"tag"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	SerialNumber string   `json:"serialNumber"`
	Location     string   `json:"location"`
	Notes        string   `json:"notes"`
	Condition    string   `json:"condition"`
	PurchaseDate string   `json:"purchaseDate"` // YYYY-MM-DD
	PurchaseCost *float64 `json:"purchaseCost"`
}

// CreateAssetHandler handles POST /api/v1/assets
func CreateAssetHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAssetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Tag == "" || req.Name == "" {
			writeError(w, http.StatusBadRequest, "tag and name are required")
			return
		}

		existing, err := store.Get(req.Tag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to check tag: %v", err))
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, fmt.Sprintf("asset %q already exists", req.Tag))
			return
		}

		a := &Asset{
			Tag:          req.Tag,
			Name:         req.Name,
			Category:     req.Category,
			Type:         req.Type,
			SerialNumber: req.SerialNumber,
			Location:     req.Location,
			Notes:        req.Notes,
			Condition:    Condition(req.Condition),
			PurchaseCost: req.PurchaseCost,
		}
		if req.PurchaseDate != "" {
			if t, err := time.Parse("2006-01-02", req.PurchaseDate); err == nil {
				a.PurchaseDate = &t
			}
		}

		if err := store.Create(a); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create asset: %v", err))
			return
		}

		writeJSON(w, http.StatusCreated, toAssetResponse(a))
	}
}

// GetAssetHandler handles GET /api/v1/assets/{tag}, returning the asset plus
// its checkout history (newest first).
func GetAssetHandler(store *Store, checkouts *CheckoutStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")

		a, err := store.Get(tag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get asset: %v", err))
			return
		}
		if a == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("asset %q not found", tag))
			return
		}

		history, _, _, err := checkouts.List(CheckoutFilter{AssetTag: tag}, 100, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
			return
		}
		items := make([]any, len(history))
		for i := range history {
			items[i] = ToCheckoutResponse(&history[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"asset":     toAssetResponse(a),
			"checkouts": items,
		})
	}
}

// patchAssetRequest is the body for PATCH /api/v1/assets/{tag}. Only fields
// present are applied. Status and condition are owned by the lifecycle
// engine and cannot be set here.
type patchAssetRequest struct {
	Name         *string  `json:"name"`
	Category     *string  `json:"category"`
	Type         *string  `json:"type"`
	SerialNumber *string  `json:"serialNumber"`
	Location     *string  `json:"location"`
	Notes        *string  `json:"notes"`
	PurchaseDate *string  `json:"purchaseDate"`
	PurchaseCost *float64 `json:"purchaseCost"`
}

// PatchAssetHandler handles PATCH /api/v1/assets/{tag}
func PatchAssetHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")

		a, err := store.Get(tag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get asset: %v", err))
			return
		}
		if a == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("asset %q not found", tag))
			return
		}

		var req patchAssetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		if req.Name != nil {
			a.Name = *req.Name
		}
		if req.Category != nil {
			a.Category = *req.Category
		}
		if req.Type != nil {
			a.Type = *req.Type
		}
		if req.SerialNumber != nil {
			a.SerialNumber = *req.SerialNumber
		}
		if req.Location != nil {
			a.Location = *req.Location
		}
		if req.Notes != nil {
			a.Notes = *req.Notes
		}
		if req.PurchaseDate != nil {
			if *req.PurchaseDate == "" {
				a.PurchaseDate = nil
			} else if t, err := time.Parse("2006-01-02", *req.PurchaseDate); err == nil {
				a.PurchaseDate = &t
			}
		}
		if req.PurchaseCost != nil {
			a.PurchaseCost = req.PurchaseCost
		}
		a.UpdatedAt = time.Now().UTC()

		if err := store.Save(a); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save asset: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, toAssetResponse(a))
	}
}

// SearchAssetsHandler handles GET /api/v1/assets/search?q=...
func SearchAssetsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeJSON(w, http.StatusOK, map[string]any{"assets": []assetResponse{}})
			return
		}

		records, err := store.Search(q, 10)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to search assets: %v", err))
			return
		}

		assets := make([]assetResponse, len(records))
		for i := range records {
			assets[i] = toAssetResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
