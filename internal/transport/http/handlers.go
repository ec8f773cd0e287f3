package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prioritizer/internal/cache"
	"prioritizer/internal/eventbus"
	"prioritizer/internal/orchestrator"
	"prioritizer/internal/task"
)

const maxBatchSize = 50

// handlePrioritize runs the pipeline synchronously and returns the result.
func (h *Handler) handlePrioritize(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeTask(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Process(r.Context(), ev)
	if err != nil {
		h.logger.Error("prioritize failed", "task_id", ev.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "prioritization failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSubmit accepts a task for asynchronous processing via the bus.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeTask(w, r)
	if !ok {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "encode task")
		return
	}
	if err := h.publish(r.Context(), eventbus.SubjectTaskAnalyze, data); err != nil {
		h.logger.Error("task submit publish failed", "task_id", ev.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "bus_unavailable", "could not enqueue task")
		return
	}
	h.pending.Store(ev.ID, time.Now())

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"task_id": ev.ID,
	})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if len(req.Tasks) == 0 || len(req.Tasks) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("batch must contain between 1 and %d tasks", maxBatchSize))
		return
	}

	events := make([]task.Event, 0, len(req.Tasks))
	for i, raw := range req.Tasks {
		ev, err := parseTask(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Sprintf("task %d: %v", i, err))
			return
		}
		events = append(events, ev)
	}

	results, err := h.svc.ProcessBatch(r.Context(), events)
	if err != nil {
		h.logger.Error("batch prioritize failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "batch prioritization failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleGetPriority looks up the cached result for a task. Tasks accepted by
// this instance but not yet processed answer 202; unknown IDs answer 404.
func (h *Handler) handleGetPriority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.cache.GetPriorityResult(r.Context(), id)
	if err == nil {
		h.pending.Delete(id)
		writeJSON(w, http.StatusOK, res)
		return
	}
	if !errors.Is(err, cache.ErrNotFound) {
		h.logger.Error("result lookup failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "result lookup failed")
		return
	}

	if _, submitted := h.pending.Load(id); submitted {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing", "task_id": id})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found", "task_id": id})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health(r.Context())
	status := http.StatusOK
	if report.Status == orchestrator.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// decodeTask reads and validates the task payload, filling server-side
// defaults (ID, created_at). On failure it writes the error response itself.
func (h *Handler) decodeTask(w http.ResponseWriter, r *http.Request) (task.Event, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return task.Event{}, false
	}
	ev, err := parseTask(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return task.Event{}, false
	}
	return ev, true
}

func parseTask(raw json.RawMessage) (task.Event, error) {
	var ev task.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return task.Event{}, fmt.Errorf("invalid task payload")
	}
	if ev.Title == "" {
		return task.Event{}, fmt.Errorf("title is required")
	}
	if !ev.Category.Valid() {
		return task.Event{}, fmt.Errorf("unknown category %q", ev.Category)
	}
	if !ev.RequesterRole.Valid() {
		return task.Event{}, fmt.Errorf("unknown requester_role %q", ev.RequesterRole)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return ev, nil
}
