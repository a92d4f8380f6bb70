package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLessonRequiresURL(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/progress/open", map[string]string{"courseId": "c1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenLessonInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/progress/open", strings.NewReader("{broken"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetadataStaleGenerationOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/progress/open", map[string]interface{}{
		"courseId": "c1", "url": "/l1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	gen1 := decode(t, w)["gen"].(float64)

	w = env.do(t, "POST", "/api/progress/open", map[string]interface{}{
		"courseId": "c1", "url": "/l2",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Metadata from the superseded load reports stale and changes nothing.
	w = env.do(t, "POST", "/api/progress/metadata", map[string]interface{}{
		"gen": gen1, "url": "/l1", "duration": 100,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["stale"])
}

func TestMarkDoneAndSnapshot(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/progress/open", map[string]interface{}{
		"courseId": "c1", "url": "/l1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "POST", "/api/progress/markdone", map[string]interface{}{"duration": 80})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode(t, w)["progress"].(map[string]interface{})
	rec := progress["/l1"].(map[string]interface{})
	assert.Equal(t, true, rec["completed"])
	assert.Equal(t, float64(80), rec["time"])
}

func TestClearRemovesRecord(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/progress/open", map[string]interface{}{
		"courseId": "c1", "url": "/l1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	gen := decode(t, w)["gen"].(float64)
	env.do(t, "POST", "/api/progress/settle", map[string]interface{}{"gen": gen})
	env.do(t, "POST", "/api/progress/report", map[string]interface{}{
		"time": 10, "duration": 100, "forced": true,
	})

	w = env.do(t, "POST", "/api/progress/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/progress", nil)
	progress := decode(t, w)["progress"].(map[string]interface{})
	assert.NotContains(t, progress, "/l1")
}

func TestEndedOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/progress/open", map[string]interface{}{
		"courseId": "c1", "url": "/l1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "POST", "/api/progress/ended", map[string]interface{}{
		"time": 99.2, "duration": 100,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/progress", nil)
	progress := decode(t, w)["progress"].(map[string]interface{})
	rec := progress["/l1"].(map[string]interface{})
	assert.Equal(t, true, rec["completed"])
	assert.Equal(t, float64(100), rec["time"])
}

func TestResumeUnknownCourse(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "GET", "/api/courses/0000000000000000000000000000000000000000/resume", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
