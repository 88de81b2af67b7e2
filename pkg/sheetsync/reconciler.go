package sheetsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolops/assettrack/pkg/asset"
)

// Reconciler moves asset records between the store and a TabularSource.
// Conflict resolution is latest-timestamp-wins on Asset.UpdatedAt versus the
// row's modified-at marker; exact ties favor the store. A pass never aborts
// on a per-row problem; only losing connectivity fails the pass.
type Reconciler struct {
	db     *gorm.DB
	assets *asset.Store
	source TabularSource
	logs   *LogStore
	logger *slog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewReconciler creates a reconciler over the given store and source.
func NewReconciler(db *gorm.DB, source TabularSource, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		db:     db,
		assets: asset.NewStore(db),
		source: source,
		logs:   NewLogStore(db),
		logger: logger,
		now:    time.Now,
	}
}

// passResult accumulates counters over one sync pass.
type passResult struct {
	processed int
	applied   int
	conflicts int
	errs      []string
}

func (p *passResult) addError(format string, args ...any) {
	p.errs = append(p.errs, fmt.Sprintf(format, args...))
}

func (p *passResult) merge(other passResult) {
	p.processed += other.processed
	p.applied += other.applied
	p.conflicts += other.conflicts
	p.errs = append(p.errs, other.errs...)
}

// Run executes one sync pass in the given direction and records exactly one
// SyncLog entry, success or failure. The returned error is non-nil only when
// the pass aborted (connectivity loss); per-row problems are counted in the
// entry instead.
func (r *Reconciler) Run(ctx context.Context, direction Direction) (*SyncLog, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("unknown sync direction %q", direction)
	}

	started := r.now().UTC()
	rows, err := r.source.Rows(ctx)
	if err != nil {
		entry := r.record(direction, started, passResult{}, StatusFailed,
			fmt.Sprintf("read source: %v", err))
		return entry, fmt.Errorf("read source: %w", err)
	}

	var result passResult
	if direction == DirectionPull || direction == DirectionBidirectional {
		result.merge(r.pull(rows))
	}
	if direction == DirectionPush || direction == DirectionBidirectional {
		pushResult, pushErr := r.push(ctx, rows)
		result.merge(pushResult)
		if pushErr != nil {
			entry := r.record(direction, started, result, StatusFailed,
				fmt.Sprintf("push: %v", pushErr))
			return entry, fmt.Errorf("push: %w", pushErr)
		}
	}

	status := StatusSuccess
	if len(result.errs) > 0 {
		status = StatusPartial
	}
	entry := r.record(direction, started, result, status, strings.Join(result.errs, "; "))

	r.logger.Info("sync pass finished",
		"direction", string(direction),
		"status", status,
		"processed", result.processed,
		"applied", result.applied,
		"conflicts", result.conflicts,
		"errors", len(result.errs))
	return entry, nil
}

// record writes the SyncLog entry for a pass. Log write failures are logged
// and swallowed: the pass outcome stands regardless.
func (r *Reconciler) record(direction Direction, started time.Time, result passResult, status, message string) *SyncLog {
	entry := &SyncLog{
		ID:               uuid.New().String(),
		Direction:        direction,
		Status:           status,
		Message:          message,
		RecordsProcessed: result.processed,
		ErrorCount:       len(result.errs),
		ConflictCount:    result.conflicts,
		DurationMs:       r.now().UTC().Sub(started).Milliseconds(),
		StartedAt:        started,
	}
	if err := r.logs.Create(entry); err != nil {
		r.logger.Error("write sync log", "error", err)
	}
	return entry
}

// pull applies source rows to the store. A row wins when its modified-at
// marker is at or after the asset's UpdatedAt; rows without a marker are
// always authoritative. Writes are skipped when the row carries no actual
// change, so repeated passes settle instead of ping-ponging.
func (r *Reconciler) pull(rows []Row) passResult {
	var result passResult
	for _, row := range rows {
		result.processed++
		tag := row.Tag()
		if tag == "" {
			result.addError("row %s: missing tag", row.Ref)
			continue
		}

		a, err := r.assets.Get(tag)
		if err != nil {
			result.addError("row %s: %v", row.Ref, err)
			continue
		}

		if a == nil {
			created, err := r.assetFromRow(tag, row)
			if err != nil {
				result.addError("row %s: %v", row.Ref, err)
				continue
			}
			if err := r.db.Create(created).Error; err != nil {
				result.addError("row %s: create asset: %v", row.Ref, err)
				continue
			}
			result.applied++
			continue
		}

		if a.Status == asset.StatusRetired {
			// Local retirement is terminal; the sheet cannot resurrect it.
			if rowDiffers(a, row) {
				result.conflicts++
			}
			continue
		}
		// The row wins only when strictly newer; on an exact tie the store
		// wins and the push half re-exports the local values.
		if row.ModifiedAt != nil && !row.ModifiedAt.After(a.UpdatedAt) {
			if rowDiffers(a, row) {
				result.conflicts++
			}
			continue
		}

		changed, err := applyRow(a, row)
		if err != nil {
			result.addError("row %s: %v", row.Ref, err)
			continue
		}
		if a.SheetRowRef == "" && row.Ref != "" {
			a.SheetRowRef = row.Ref
			changed = true
		}
		if !changed {
			continue
		}

		if row.ModifiedAt != nil {
			a.UpdatedAt = row.ModifiedAt.UTC()
		} else {
			a.UpdatedAt = r.now().UTC()
		}
		if err := r.assets.Save(a); err != nil {
			result.addError("row %s: save asset: %v", row.Ref, err)
			continue
		}
		result.applied++
	}
	return result
}

// push exports non-retired assets to the source. Assets without a row ref
// are appended; the rest are updated when the store side is at least as new
// as the row and the values actually differ. A write failure against the
// source aborts the pass.
func (r *Reconciler) push(ctx context.Context, rows []Row) (passResult, error) {
	var result passResult

	index := make(map[string]Row, len(rows))
	for _, row := range rows {
		if tag := row.Tag(); tag != "" {
			if _, ok := index[tag]; !ok {
				index[tag] = row
			}
		}
	}

	records, err := r.assets.ListForExport()
	if err != nil {
		return result, err
	}

	for i := range records {
		a := &records[i]
		result.processed++
		out := rowFromAsset(a)

		existing, ok := index[a.Tag]
		if !ok {
			ref, err := r.source.Append(ctx, out)
			if err != nil {
				return result, fmt.Errorf("append row for %s: %w", a.Tag, err)
			}
			if err := r.saveRowRef(a.Tag, ref); err != nil {
				result.addError("asset %s: %v", a.Tag, err)
				continue
			}
			result.applied++
			continue
		}

		// Exact tie favors the store.
		if existing.ModifiedAt != nil && existing.ModifiedAt.After(a.UpdatedAt) {
			result.conflicts++
			continue
		}

		if a.SheetRowRef != existing.Ref {
			if err := r.saveRowRef(a.Tag, existing.Ref); err != nil {
				result.addError("asset %s: %v", a.Tag, err)
				continue
			}
		}
		if !valuesDiffer(existing, out) {
			continue
		}
		if err := r.source.Update(ctx, existing.Ref, out); err != nil {
			return result, fmt.Errorf("update row for %s: %w", a.Tag, err)
		}
		result.applied++
	}
	return result, nil
}

// saveRowRef records the external row ref without touching UpdatedAt; the
// ref is sync bookkeeping, not an asset edit.
func (r *Reconciler) saveRowRef(tag, ref string) error {
	err := r.db.Model(&asset.Asset{}).Where("tag = ?", tag).
		Update("sheet_row_ref", ref).Error
	if err != nil {
		return fmt.Errorf("save row ref: %w", err)
	}
	return nil
}

// assetFromRow builds a new asset from a source row.
func (r *Reconciler) assetFromRow(tag string, row Row) (*asset.Asset, error) {
	a := &asset.Asset{
		Tag:         tag,
		Status:      asset.StatusAvailable,
		Condition:   asset.ConditionGood,
		SheetRowRef: row.Ref,
	}
	if _, err := applyRow(a, row); err != nil {
		return nil, err
	}
	if row.ModifiedAt != nil {
		a.UpdatedAt = row.ModifiedAt.UTC()
	} else {
		a.UpdatedAt = r.now().UTC()
	}
	return a, nil
}

// applyRow copies row values onto the asset for every column the row
// carries, reporting whether anything actually changed.
func applyRow(a *asset.Asset, row Row) (bool, error) {
	changed := false
	setString := func(key string, dst *string) {
		if v, ok := row.Values[key]; ok && v != *dst {
			*dst = v
			changed = true
		}
	}
	setString(ColName, &a.Name)
	setString(ColCategory, &a.Category)
	setString(ColType, &a.Type)
	setString(ColSerialNumber, &a.SerialNumber)
	setString(ColLocation, &a.Location)
	setString(ColNotes, &a.Notes)

	if v, ok := row.Values[ColStatus]; ok && v != "" {
		status := asset.Status(v)
		if !status.Valid() {
			return changed, fmt.Errorf("unknown status %q", v)
		}
		if status != a.Status {
			a.Status = status
			changed = true
		}
	}
	if v, ok := row.Values[ColCondition]; ok && v != "" {
		condition := asset.Condition(v)
		if !condition.Valid() {
			return changed, fmt.Errorf("unknown condition %q", v)
		}
		if condition != a.Condition {
			a.Condition = condition
			changed = true
		}
	}
	return changed, nil
}

// rowFromAsset renders an asset as a source row. The modified-at marker is
// the asset's UpdatedAt; the source implementation serializes it into the
// mapped column.
func rowFromAsset(a *asset.Asset) Row {
	modified := a.UpdatedAt.UTC()
	return Row{
		Ref: a.SheetRowRef,
		Values: map[string]string{
			ColTag:          a.Tag,
			ColName:         a.Name,
			ColCategory:     a.Category,
			ColType:         a.Type,
			ColSerialNumber: a.SerialNumber,
			ColStatus:       string(a.Status),
			ColCondition:    string(a.Condition),
			ColLocation:     a.Location,
			ColNotes:        a.Notes,
		},
		ModifiedAt: &modified,
	}
}

// rowDiffers reports whether any column the row carries disagrees with the
// asset's current value. Used to decide whether a skipped row is a real
// conflict or just marker drift.
func rowDiffers(a *asset.Asset, row Row) bool {
	local := rowFromAsset(a)
	for key, v := range row.Values {
		if key == ColModifiedAt {
			continue
		}
		if local.Values[key] != v {
			return true
		}
	}
	return false
}

// valuesDiffer compares the data columns of two rows, ignoring the
// modified-at marker so that marker-only drift does not cause writes.
func valuesDiffer(a, b Row) bool {
	for _, key := range []string{
		ColTag, ColName, ColCategory, ColType, ColSerialNumber,
		ColStatus, ColCondition, ColLocation, ColNotes,
	} {
		if a.Values[key] != b.Values[key] {
			return true
		}
	}
	return false
}
