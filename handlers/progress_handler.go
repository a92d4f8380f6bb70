package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"course-player-backend/models"
	"course-player-backend/services"
	"course-player-backend/utils"
)

// ProgressHandler delivers player events to the progress tracker
type ProgressHandler struct {
	tracker  *services.ProgressTracker
	registry *services.RegistryService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(tracker *services.ProgressTracker, registry *services.RegistryService) *ProgressHandler {
	return &ProgressHandler{
		tracker:  tracker,
		registry: registry,
	}
}

// OpenLesson handles POST /api/progress/open
func (h *ProgressHandler) OpenLesson(w http.ResponseWriter, r *http.Request) {
	var req models.OpenLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "Lesson url is required")
		return
	}

	gen, saved := h.tracker.OpenLesson(req.CourseID, req.URL, req.PrevTime, req.PrevDuration)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"gen":   gen,
		"saved": saved,
	})
}

// Metadata handles POST /api/progress/metadata
func (h *ProgressHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	var req models.MetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resume, ok := h.tracker.MetadataReady(req.Gen, req.URL, req.Duration)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"stale":  !ok,
		"resume": resume,
		"seek":   ok && resume > 0,
	})
}

// Settle handles POST /api/progress/settle
func (h *ProgressHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req models.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	h.tracker.SettleLoaded(req.Gen)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Report handles POST /api/progress/report
func (h *ProgressHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	rec, saved := h.tracker.Report(req.Time, req.Duration, req.Forced)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"saved":  saved,
		"record": rec,
	})
}

// Ended handles POST /api/progress/ended
func (h *ProgressHandler) Ended(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	h.tracker.Ended(req.Time, req.Duration)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// MarkDone handles POST /api/progress/markdone
func (h *ProgressHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	h.tracker.MarkDone(req.Duration)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Clear handles POST /api/progress/clear
func (h *ProgressHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.tracker.Clear()
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// CloseCourse handles POST /api/progress/close
func (h *ProgressHandler) CloseCourse(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.tracker.CloseCourse(req.Time, req.Duration)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Snapshot handles GET /api/progress
func (h *ProgressHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress": h.tracker.Snapshot(),
	})
}

// Resume handles GET /api/courses/{id}/resume, choosing the default lesson
// for a freshly opened course: last-opened if still present, else the first
// lesson of the first section.
func (h *ProgressHandler) Resume(w http.ResponseWriter, r *http.Request) {
	courseID := mux.Vars(r)["id"]

	course, ok := h.registry.Find(courseID)
	if !ok {
		http.Error(w, "Course not found", http.StatusNotFound)
		return
	}
	if !utils.DirExists(course.Path) {
		http.Error(w, "Course folder missing", http.StatusNotFound)
		return
	}

	index := services.ScanCourse(course.Path, courseID)
	lesson := h.tracker.Resume(courseID, index)
	watched, total := h.tracker.CountWatched(index)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lesson":  lesson,
		"watched": watched,
		"total":   total,
	})
}
