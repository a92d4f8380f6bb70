package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"course-player-backend/logger"
	"course-player-backend/models"
	"course-player-backend/services"
	"course-player-backend/utils"
)

// courseIDPattern matches the 40-hex-char content-addressed course id.
// Anything else is rejected before the store is touched.
var courseIDPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// CourseHandler handles catalog, course-open and file-serving requests
type CourseHandler struct {
	registry *services.RegistryService
	picker   services.FolderPicker
	mediaDir string
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(registry *services.RegistryService, picker services.FolderPicker, mediaDir string) *CourseHandler {
	return &CourseHandler{
		registry: registry,
		picker:   picker,
		mediaDir: mediaDir,
	}
}

// ListCourses handles GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	summaries := h.registry.ListSummaries()
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": summaries})
}

// PickCourse handles GET/POST /api/courses/pick. A POST body may carry an
// explicit {path}, bypassing the external folder picker dialog.
func (h *CourseHandler) PickCourse(w http.ResponseWriter, r *http.Request) {
	var selected string

	if r.Method == http.MethodPost && r.Body != nil {
		var req models.PickCourseRequest
		// Body is optional; a bad or empty body just falls through to the picker.
		_ = json.NewDecoder(r.Body).Decode(&req)
		selected = strings.TrimSpace(req.Path)
	}

	if selected == "" {
		path, cancelled, err := h.picker.Pick()
		if err != nil {
			logger.Error("folder picker failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if cancelled {
			writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "cancelled": true})
			return
		}
		selected = path
	}

	courseID, err := h.registry.Upsert(selected)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"cancelled": false,
		"courseId":  courseID,
	})
}

// RemoveCourse handles POST /api/courses/remove
func (h *CourseHandler) RemoveCourse(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.removeByID(w, req.ID)
}

// RemoveCourseQuery handles GET /api/courses/remove?id= (fallback kept for
// players that retry failed POSTs as GETs)
func (h *CourseHandler) RemoveCourseQuery(w http.ResponseWriter, r *http.Request) {
	h.removeByID(w, r.URL.Query().Get("id"))
}

func (h *CourseHandler) removeByID(w http.ResponseWriter, rawID string) {
	courseID := strings.TrimSpace(rawID)
	if !courseIDPattern.MatchString(courseID) {
		writeError(w, http.StatusBadRequest, "Invalid course id")
		return
	}

	removed, err := h.registry.Remove(courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "removed": removed})
}

// CourseIndex handles GET /api/courses/{id}/index.json
func (h *CourseHandler) CourseIndex(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, index)
}

// ServeCourseFile handles GET /api/courses/{id}/file?rel=. The resolved
// path must pass the course-root guard before anything is read; unsafe
// paths get a 403 without touching the filesystem.
func (h *CourseHandler) ServeCourseFile(w http.ResponseWriter, r *http.Request) {
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

	rel := r.URL.Query().Get("rel")
	if strings.TrimSpace(rel) == "" {
		http.Error(w, "Missing rel query", http.StatusBadRequest)
		return
	}
	rel = strings.ReplaceAll(rel, "/", string(filepath.Separator))

	fullPath := filepath.Join(course.Path, rel)
	if !utils.IsInsideRoot(course.Path, fullPath) {
		logger.Warn("path traversal rejected",
			zap.String("course", courseID), zap.String("rel", rel))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	// ServeFile handles byte-range requests, needed for scrubbing.
	http.ServeFile(w, r, fullPath)
}

// LegacyIndex handles GET /index.json, scanning the unmanaged flat root.
func (h *CourseHandler) LegacyIndex(w http.ResponseWriter, r *http.Request) {
	index := services.ScanLegacyRoot(h.mediaDir)
	writeJSON(w, http.StatusOK, index)
}
