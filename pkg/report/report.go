// Package report serves CSV exports over the asset and checkout stores.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolops/assettrack/pkg/asset"
)

// Reports available under /{name}.csv.
const (
	NameStatusSummary = "status_summary"
	NameOpenCheckouts = "open_checkouts"
	NameOverdue       = "overdue"
	NameInventory     = "inventory"
)

// Reporter builds CSV reports from the stores.
type Reporter struct {
	assets    *asset.Store
	checkouts *asset.CheckoutStore

	// now is overridable in tests.
	now func() time.Time
}

// NewReporter creates a Reporter over the given stores.
func NewReporter(assets *asset.Store, checkouts *asset.CheckoutStore) *Reporter {
	return &Reporter{assets: assets, checkouts: checkouts, now: time.Now}
}

// Router returns the reports sub-router.
func Router(reporter *Reporter) chi.Router {
	r := chi.NewRouter()
	r.Get("/{name}.csv", reporter.Handler())
	return r
}

// Handler serves GET /{name}.csv.
func (rp *Reporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		var rows [][]string
		var err error
		switch name {
		case NameStatusSummary:
			rows, err = rp.statusSummary()
		case NameOpenCheckouts:
			rows, err = rp.openCheckouts()
		case NameOverdue:
			rows, err = rp.overdue()
		case NameInventory:
			rows, err = rp.inventory()
		default:
			writeError(w, http.StatusNotFound, "unknown report: "+name)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", name+".csv"))
		cw := csv.NewWriter(w)
		_ = cw.WriteAll(rows)
	}
}

// statusSummary is one row per status with asset counts.
func (rp *Reporter) statusSummary() ([][]string, error) {
	counts, err := rp.assets.CountByStatus()
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"status", "count"}}
	for _, status := range []asset.Status{
		asset.StatusAvailable,
		asset.StatusCheckedOut,
		asset.StatusDeployed,
		asset.StatusMaintenance,
		asset.StatusRetired,
	} {
		rows = append(rows, []string{string(status), strconv.Itoa(counts[status])})
	}
	return rows, nil
}

func checkoutHeader() []string {
	return []string{"tag", "recipient", "issued_by", "checkout_at", "expected_return_at"}
}

func checkoutRow(c *asset.Checkout) []string {
	expected := ""
	if c.ExpectedReturnAt != nil {
		expected = c.ExpectedReturnAt.UTC().Format(time.RFC3339)
	}
	return []string{
		c.AssetTag,
		c.Recipient,
		c.IssuedBy,
		c.CheckoutAt.UTC().Format(time.RFC3339),
		expected,
	}
}

// openCheckouts lists every checkout still out.
func (rp *Reporter) openCheckouts() ([][]string, error) {
	records, err := rp.checkouts.ListOpen()
	if err != nil {
		return nil, err
	}
	rows := [][]string{checkoutHeader()}
	for i := range records {
		rows = append(rows, checkoutRow(&records[i]))
	}
	return rows, nil
}

// overdue lists open checkouts past their expected return, with days late.
func (rp *Reporter) overdue() ([][]string, error) {
	now := rp.now()
	records, err := rp.checkouts.ListOverdue(now)
	if err != nil {
		return nil, err
	}
	rows := [][]string{append(checkoutHeader(), "days_overdue")}
	for i := range records {
		c := &records[i]
		days := int(now.Sub(*c.ExpectedReturnAt).Hours() / 24)
		rows = append(rows, append(checkoutRow(c), strconv.Itoa(days)))
	}
	return rows, nil
}

// inventory is the full non-retired asset list.
func (rp *Reporter) inventory() ([][]string, error) {
	records, err := rp.assets.ListForExport()
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"tag", "name", "category", "type", "serial_number", "status", "condition", "location"}}
	for i := range records {
		a := &records[i]
		rows = append(rows, []string{
			a.Tag, a.Name, a.Category, a.Type, a.SerialNumber,
			string(a.Status), string(a.Condition), a.Location,
		})
	}
	return rows, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
