package lifecycle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolops/assettrack/pkg/asset"
	"github.com/schoolops/assettrack/pkg/authn"
)

type checkoutRequestBody struct {
	Tag              string     `json:"tag"`
	Recipient        string     `json:"recipient"`
	Operator         string     `json:"operator"`
	ExpectedReturnAt *time.Time `json:"expectedReturnAt,omitempty"`
	Deploy           bool       `json:"deploy,omitempty"`
}

// CheckoutHandler handles POST /checkout.
func CheckoutHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body checkoutRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.Tag == "" || body.Recipient == "" {
			writeError(w, http.StatusBadRequest, "tag and recipient are required")
			return
		}

		id, err := engine.Checkout(r.Context(), CheckoutRequest{
			Tag:              body.Tag,
			Recipient:        body.Recipient,
			Operator:         authn.OperatorName(r.Context(), body.Operator),
			ExpectedReturnAt: body.ExpectedReturnAt,
			Deploy:           body.Deploy,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"checkoutID": id})
	}
}

type checkinRequestBody struct {
	Tag       string `json:"tag"`
	Condition string `json:"condition"`
	Notes     string `json:"notes,omitempty"`
}

// CheckinHandler handles POST /checkin.
func CheckinHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body checkinRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.Tag == "" {
			writeError(w, http.StatusBadRequest, "tag is required")
			return
		}
		condition := asset.Condition(body.Condition)
		if condition == "" {
			condition = asset.ConditionGood
		}
		if !condition.Valid() {
			writeError(w, http.StatusBadRequest, "unknown condition: "+body.Condition)
			return
		}

		closed, err := engine.Checkin(r.Context(), body.Tag, condition, body.Notes)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, asset.ToCheckoutResponse(closed))
	}
}

type loanerSwapRequestBody struct {
	BrokenTag string `json:"brokenTag"`
	LoanerTag string `json:"loanerTag"`
	Operator  string `json:"operator"`
	Notes     string `json:"notes,omitempty"`
}

// LoanerSwapHandler handles POST /loaner-swap.
func LoanerSwapHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loanerSwapRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.BrokenTag == "" || body.LoanerTag == "" {
			writeError(w, http.StatusBadRequest, "brokenTag and loanerTag are required")
			return
		}

		operator := authn.OperatorName(r.Context(), body.Operator)
		result, err := engine.LoanerSwap(r.Context(), body.BrokenTag, body.LoanerTag, operator, body.Notes)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"brokenTag":        result.BrokenTag,
			"loanerTag":        result.LoanerTag,
			"recipient":        result.Recipient,
			"closedCheckoutID": result.ClosedCheckoutID,
			"newCheckoutID":    result.NewCheckoutID,
		})
	}
}

type retireRequestBody struct {
	Tag string `json:"tag"`
}

// RetireHandler handles POST /retire.
func RetireHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body retireRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.Tag == "" {
			writeError(w, http.StatusBadRequest, "tag is required")
			return
		}
		if err := engine.Retire(r.Context(), body.Tag); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"tag": body.Tag, "status": string(asset.StatusRetired)})
	}
}

// ListCheckoutsHandler handles GET /checkouts with optional tag, state and
// pagination query parameters.
func ListCheckoutsHandler(checkouts *asset.CheckoutStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := asset.CheckoutFilter{
			AssetTag: q.Get("tag"),
			State:    asset.CheckoutState(q.Get("state")),
		}
		records, nextToken, total, err := checkouts.List(filter, parsePageSize(q.Get("pageSize")), q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		items := make([]any, 0, len(records))
		for i := range records {
			items = append(items, asset.ToCheckoutResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":         items,
			"size":          len(items),
			"totalSize":     total,
			"nextPageToken": nextToken,
		})
	}
}

// OverdueCheckoutsHandler handles GET /checkouts/overdue.
func OverdueCheckoutsHandler(checkouts *asset.CheckoutStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overdue, err := checkouts.ListOverdue(time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		items := make([]any, 0, len(overdue))
		for i := range overdue {
			items = append(items, asset.ToCheckoutResponse(&overdue[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "size": len(items)})
	}
}

// ticketResponse is the API representation of a repair ticket.
type ticketResponse struct {
	ID         string `json:"id"`
	AssetTag   string `json:"assetTag"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"createdAt"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

func toTicketResponse(t *asset.RepairTicket) ticketResponse {
	resp := ticketResponse{
		ID:        t.ID,
		AssetTag:  t.AssetTag,
		Status:    string(t.Status),
		Notes:     t.Notes,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if t.ResolvedAt != nil {
		resp.ResolvedAt = t.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// ListTicketsHandler handles GET /tickets with optional tag and status
// filters.
func ListTicketsHandler(tickets *asset.TicketStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := asset.TicketFilter{
			AssetTag: q.Get("tag"),
			Status:   asset.RepairStatus(q.Get("status")),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown repair status: "+string(filter.Status))
			return
		}

		records, err := tickets.List(filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		items := make([]ticketResponse, len(records))
		for i := range records {
			items[i] = toTicketResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"tickets": items, "size": len(items)})
	}
}

type updateTicketRequestBody struct {
	Status string `json:"status"`
}

// UpdateTicketHandler handles POST /tickets/{ticketId}, advancing the
// repair workflow.
func UpdateTicketHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateTicketRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		status := asset.RepairStatus(body.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown repair status: "+body.Status)
			return
		}

		ticket, err := engine.UpdateRepairTicket(r.Context(), chi.URLParam(r, "ticketId"), status)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTicketResponse(ticket))
	}
}

func parsePageSize(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// writeEngineError maps a structured lifecycle error to its HTTP status:
// missing assets are 404, every other precondition failure is a 409.
func writeEngineError(w http.ResponseWriter, err error) {
	var lcErr *Error
	if errors.As(err, &lcErr) {
		status := http.StatusConflict
		if lcErr.Code == CodeNotFound || lcErr.Code == CodeTicketNotFound {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(lcErr)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
