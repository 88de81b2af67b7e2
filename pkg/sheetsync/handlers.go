package sheetsync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type syncLogResponse struct {
	ID               string    `json:"id"`
	Direction        Direction `json:"direction"`
	Status           string    `json:"status"`
	Message          string    `json:"message,omitempty"`
	RecordsProcessed int       `json:"recordsProcessed"`
	ErrorCount       int       `json:"errorCount"`
	ConflictCount    int       `json:"conflictCount"`
	DurationMs       int64     `json:"durationMs"`
	StartedAt        time.Time `json:"startedAt"`
}

func toSyncLogResponse(e *SyncLog) syncLogResponse {
	return syncLogResponse{
		ID:               e.ID,
		Direction:        e.Direction,
		Status:           e.Status,
		Message:          e.Message,
		RecordsProcessed: e.RecordsProcessed,
		ErrorCount:       e.ErrorCount,
		ConflictCount:    e.ConflictCount,
		DurationMs:       e.DurationMs,
		StartedAt:        e.StartedAt,
	}
}

// TriggerHandler handles POST /{direction}. The pass runs synchronously;
// a pass already in flight yields 409.
func TriggerHandler(scheduler *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		direction := Direction(chi.URLParam(r, "direction"))
		if !direction.Valid() {
			writeError(w, http.StatusBadRequest, "unknown sync direction: "+string(direction))
			return
		}

		entry, err := scheduler.Trigger(r.Context(), direction)
		if err != nil {
			if errors.Is(err, ErrPassRunning) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			// The pass aborted; the failure is recorded in its log entry.
			if entry != nil {
				writeJSON(w, http.StatusBadGateway, toSyncLogResponse(entry))
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toSyncLogResponse(entry))
	}
}

// ListLogsHandler handles GET /logs with page-token pagination.
func ListLogsHandler(logs *LogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pageSize := 0
		if raw := q.Get("pageSize"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				pageSize = v
			}
		}

		entries, nextToken, err := logs.List(pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		items := make([]syncLogResponse, 0, len(entries))
		for i := range entries {
			items = append(items, toSyncLogResponse(&entries[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":         items,
			"size":          len(items),
			"nextPageToken": nextToken,
		})
	}
}

// StatusHandler handles GET /status: a live connectivity check plus the
// most recent pass summary.
func StatusHandler(source TabularSource, logs *LogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connected := true
		connectionError := ""
		if err := source.Ping(r.Context()); err != nil {
			connected = false
			connectionError = err.Error()
		}

		resp := map[string]any{"connected": connected}
		if connectionError != "" {
			resp["connectionError"] = connectionError
		}
		latest, err := logs.Latest()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if latest != nil {
			resp["lastPass"] = toSyncLogResponse(latest)
		}
		writeJSON(w, http.StatusOK, resp)
	}
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
