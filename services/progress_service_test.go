package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-player-backend/config"
	"course-player-backend/models"
)

func fakeClock(unixSec int64) func() time.Time {
	return func() time.Time { return time.Unix(unixSec, 0) }
}

// memStore is an in-memory ProgressStore for tracker tests.
type memStore struct {
	progress map[string]models.ProgressRecord
	last     map[string]models.LastPosition
}

func newMemStore() *memStore {
	return &memStore{
		progress: map[string]models.ProgressRecord{},
		last:     map[string]models.LastPosition{},
	}
}

func (s *memStore) LoadProgress() map[string]models.ProgressRecord {
	out := map[string]models.ProgressRecord{}
	for k, v := range s.progress {
		out[k] = v
	}
	return out
}

func (s *memStore) SaveProgress(m map[string]models.ProgressRecord) error {
	s.progress = map[string]models.ProgressRecord{}
	for k, v := range m {
		s.progress[k] = v
	}
	return nil
}

func (s *memStore) LoadLast() map[string]models.LastPosition {
	out := map[string]models.LastPosition{}
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

func (s *memStore) SaveLast(m map[string]models.LastPosition) error {
	s.last = map[string]models.LastPosition{}
	for k, v := range m {
		s.last[k] = v
	}
	return nil
}

// testClock advances manually so throttle windows are deterministic.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1700000000, 0)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testPlayback() config.PlaybackConfig {
	return config.PlaybackConfig{
		CompletionRatio: 0.95,
		EndClampMargin:  0.35,
		MinResumeSeek:   0.2,
		SaveThrottle:    900 * time.Millisecond,
		SettleDelay:     150 * time.Millisecond,
		TickInterval:    1500 * time.Millisecond,
	}
}

func newTestTracker() (*ProgressTracker, *memStore, *testClock) {
	store := newMemStore()
	clock := newTestClock()
	tr := NewProgressTracker(store, testPlayback())
	tr.now = clock.now
	return tr, store, clock
}

// openAndSettle gets a tracker past the loading phase for a lesson.
func openAndSettle(t *testing.T, tr *ProgressTracker, courseID, url string) int64 {
	t.Helper()
	gen, _ := tr.OpenLesson(courseID, url, 0, 0)
	tr.SettleLoaded(gen)
	return gen
}

func TestCompletionThreshold(t *testing.T) {
	tr, _, clock := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	rec, saved := tr.Report(94.9, 100, false)
	require.True(t, saved)
	assert.False(t, rec.Completed)
	assert.Equal(t, 94.9, rec.Time)

	clock.advance(time.Second)
	rec, saved = tr.Report(95.0, 100, false)
	require.True(t, saved)
	assert.True(t, rec.Completed)
	assert.Equal(t, 100.0, rec.Time, "completed lessons snap to full duration")
}

func TestResumeClamp(t *testing.T) {
	tr, _, clock := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")
	_, saved := tr.Report(49.9, 0, true)
	require.True(t, saved)
	clock.advance(time.Second)

	gen, _ := tr.OpenLesson("c1", "/l1", 0, 0)
	resume, ok := tr.MetadataReady(gen, "/l1", 50)
	require.True(t, ok)
	assert.InDelta(t, 49.65, resume, 1e-9)
}

func TestResumeBelowSeekThreshold(t *testing.T) {
	tr, _, _ := newTestTracker()
	gen, _ := tr.OpenLesson("c1", "/l1", 0, 0)

	resume, ok := tr.MetadataReady(gen, "/l1", 100)
	require.True(t, ok)
	assert.Zero(t, resume, "no stored progress means no seek")
}

func TestResumeUnclampedWhenDurationUnknown(t *testing.T) {
	tr, _, clock := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")
	tr.Report(42, 0, true)
	clock.advance(time.Second)

	gen, _ := tr.OpenLesson("c1", "/l1", 0, 0)
	resume, ok := tr.MetadataReady(gen, "/l1", 0)
	require.True(t, ok)
	assert.Equal(t, 42.0, resume)
}

func TestThrottleSkipsRapidReports(t *testing.T) {
	tr, _, clock := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	_, saved := tr.Report(10, 100, false)
	require.True(t, saved)

	clock.advance(300 * time.Millisecond)
	_, saved = tr.Report(11, 100, false)
	assert.False(t, saved, "second report inside the throttle window is skipped")

	clock.advance(700 * time.Millisecond)
	_, saved = tr.Report(12, 100, false)
	assert.True(t, saved)
}

func TestForcedReportBypassesThrottle(t *testing.T) {
	tr, _, clock := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	_, saved := tr.Report(10, 100, false)
	require.True(t, saved)

	clock.advance(100 * time.Millisecond)
	rec, saved := tr.Report(11, 100, true)
	assert.True(t, saved)
	assert.Equal(t, 11.0, rec.Time)
}

func TestReportsSuppressedWhileLoading(t *testing.T) {
	tr, _, _ := newTestTracker()
	gen, _ := tr.OpenLesson("c1", "/l1", 0, 0)

	_, saved := tr.Report(3, 100, false)
	assert.False(t, saved, "unforced reports are dropped during load")

	_, saved = tr.Report(3, 100, true)
	assert.True(t, saved, "forced reports still write during load")

	tr.SettleLoaded(gen)
}

func TestStaleGenerationIgnored(t *testing.T) {
	tr, _, _ := newTestTracker()
	gen1, _ := tr.OpenLesson("c1", "/l1", 0, 0)
	gen2, _ := tr.OpenLesson("c1", "/l2", 0, 0)
	require.NotEqual(t, gen1, gen2)

	_, ok := tr.MetadataReady(gen1, "/l1", 100)
	assert.False(t, ok, "metadata from a superseded load is a no-op")

	_, ok = tr.MetadataReady(gen2, "/l2", 100)
	assert.True(t, ok)

	// A stale settle must not clear loading for the newer load.
	tr.SettleLoaded(gen1)
	_, saved := tr.Report(5, 100, false)
	assert.False(t, saved)
}

func TestMetadataURLMismatchIgnored(t *testing.T) {
	tr, _, _ := newTestTracker()
	gen, _ := tr.OpenLesson("c1", "/l1", 0, 0)

	_, ok := tr.MetadataReady(gen, "/other", 100)
	assert.False(t, ok)
}

func TestClearSuppressesOneForcedSave(t *testing.T) {
	tr, store, clock := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")
	tr.Report(30, 100, true)
	require.Contains(t, store.progress, "/l1")

	tr.Clear()
	assert.NotContains(t, store.progress, "/l1", "record deleted entirely")

	// The reset-to-zero triggers a forced save; exactly one is swallowed.
	_, saved := tr.Report(0, 100, true)
	assert.False(t, saved)
	assert.NotContains(t, store.progress, "/l1")

	clock.advance(time.Second)
	_, saved = tr.Report(5, 100, true)
	assert.True(t, saved, "suppression is one-shot")
}

func TestFlushBeforeSwitch(t *testing.T) {
	tr, store, _ := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	// Switching lessons flushes the outgoing position unthrottled.
	tr.OpenLesson("c1", "/l2", 37.5, 100)

	rec := store.progress["/l1"]
	assert.Equal(t, 37.5, rec.Time)
	assert.Equal(t, 100.0, rec.Duration)
}

func TestReopenSameLessonDoesNotFlush(t *testing.T) {
	tr, store, _ := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	tr.OpenLesson("c1", "/l1", 99, 100)
	assert.NotContains(t, store.progress, "/l1")
}

func TestEndedSnapsToDuration(t *testing.T) {
	tr, store, _ := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	tr.Ended(97.3, 100)
	rec := store.progress["/l1"]
	assert.True(t, rec.Completed)
	assert.Equal(t, 100.0, rec.Time)
}

func TestEndedUnknownDurationKeepsTime(t *testing.T) {
	tr, store, _ := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	tr.Ended(88, 0)
	rec := store.progress["/l1"]
	assert.True(t, rec.Completed)
	assert.Equal(t, 88.0, rec.Time)
}

func TestMarkDone(t *testing.T) {
	tr, store, _ := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	tr.MarkDone(120)
	rec := store.progress["/l1"]
	assert.True(t, rec.Completed)
	assert.Equal(t, 120.0, rec.Time)
	assert.Equal(t, 120.0, rec.Duration)
}

func TestLastByCourseUpdatedOnOpen(t *testing.T) {
	tr, store, _ := newTestTracker()
	tr.OpenLesson("c1", "/l1", 0, 0)
	tr.OpenLesson("c1", "/l2", 0, 0)

	assert.Equal(t, models.LastPosition{URL: "/l2"}, store.last["c1"])
}

func TestResumePrefersLastOpened(t *testing.T) {
	tr, _, _ := newTestTracker()
	index := &models.CourseIndex{Items: []models.CourseSection{
		{Title: "Basics", Order: 1, Videos: []models.CourseVideo{
			{Title: "a", URL: "/l1"},
			{Title: "b", URL: "/l2"},
		}},
	}}

	tr.OpenLesson("c1", "/l2", 0, 0)

	lesson := tr.Resume("c1", index)
	require.NotNil(t, lesson)
	assert.Equal(t, "/l2", lesson.URL)
	assert.Equal(t, "Basics", lesson.SectionTitle)
}

func TestResumeFallsBackToFirstLesson(t *testing.T) {
	tr, _, _ := newTestTracker()
	index := &models.CourseIndex{Items: []models.CourseSection{
		{Title: "Basics", Order: 1, Videos: []models.CourseVideo{{Title: "a", URL: "/l1"}}},
	}}

	// Last-opened lesson no longer exists in the fresh scan.
	tr.OpenLesson("c1", "/gone", 0, 0)

	lesson := tr.Resume("c1", index)
	require.NotNil(t, lesson)
	assert.Equal(t, "/l1", lesson.URL)
}

func TestResumeEmptyIndex(t *testing.T) {
	tr, _, _ := newTestTracker()
	assert.Nil(t, tr.Resume("c1", &models.CourseIndex{}))
}

func TestCountWatched(t *testing.T) {
	tr, _, clock := newTestTracker()
	index := &models.CourseIndex{Items: []models.CourseSection{
		{Videos: []models.CourseVideo{{URL: "/l1"}, {URL: "/l2"}}},
		{Videos: []models.CourseVideo{{URL: "/l3"}}},
	}}

	openAndSettle(t, tr, "c1", "/l1")
	tr.Report(96, 100, true)
	clock.advance(time.Second)

	watched, total := tr.CountWatched(index)
	assert.Equal(t, 1, watched)
	assert.Equal(t, 3, total)
}

func TestProgressSurvivesRestart(t *testing.T) {
	store := newMemStore()
	tr := NewProgressTracker(store, testPlayback())
	tr.now = newTestClock().now

	gen, _ := tr.OpenLesson("c1", "/l1", 0, 0)
	tr.SettleLoaded(gen)
	tr.Report(12.5, 60, true)

	// Fresh tracker over the same store resumes where the last one stopped.
	tr2 := NewProgressTracker(store, testPlayback())
	tr2.now = newTestClock().now
	gen2, saved := tr2.OpenLesson("c1", "/l1", 0, 0)
	assert.Equal(t, 12.5, saved.Time)

	resume, ok := tr2.MetadataReady(gen2, "/l1", 60)
	require.True(t, ok)
	assert.Equal(t, 12.5, resume)
}

func TestCloseCourseResetsSession(t *testing.T) {
	tr, store, _ := newTestTracker()
	openAndSettle(t, tr, "c1", "/l1")

	tr.CloseCourse(20, 100)
	assert.Equal(t, 20.0, store.progress["/l1"].Time)

	// No active lesson: reports are ignored.
	_, saved := tr.Report(30, 100, true)
	assert.False(t, saved)
}
