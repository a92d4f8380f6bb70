package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"course-player-backend/config"
	"course-player-backend/logger"
	"course-player-backend/models"
)

// ProgressTracker owns per-lesson watch state and the per-course
// last-opened pointer. It is an explicit session-state machine driven by
// player events: the player reports loads, metadata, position ticks and
// session-ending events, and the tracker decides which of them warrant a
// write to the store.
//
// One player drives one tracker; the mutex only serializes the HTTP
// handlers that deliver the events.
type ProgressTracker struct {
	mu    sync.Mutex
	store ProgressStore
	cfg   config.PlaybackConfig
	now   func() time.Time

	progress     map[string]models.ProgressRecord
	lastByCourse map[string]models.LastPosition

	currentURL    string
	currentCourse string
	loading       bool
	activeGen     int64
	lastSaveMs    int64
	// Armed by Clear so that resetting playback to zero is not immediately
	// re-recorded as new progress by the forced save the reset triggers.
	suppressForced bool
}

// NewProgressTracker loads both maps from the store and returns a tracker
// with no active lesson.
func NewProgressTracker(store ProgressStore, cfg config.PlaybackConfig) *ProgressTracker {
	return &ProgressTracker{
		store:        store,
		cfg:          cfg,
		now:          time.Now,
		progress:     store.LoadProgress(),
		lastByCourse: store.LoadLast(),
	}
}

// OpenLesson switches playback to url within courseID. If another lesson is
// active its position (prevTime/prevDuration, as reported by the player) is
// force-persisted first, so a rapid switch never loses progress. Returns
// the generation token for this load and the stored record for the new
// lesson.
func (t *ProgressTracker) OpenLesson(courseID, url string, prevTime, prevDuration float64) (int64, models.ProgressRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentURL != "" && t.currentURL != url {
		t.persistLocked(prevTime, prevDuration, true)
	}

	t.currentURL = url
	t.currentCourse = courseID
	if courseID != "" && url != "" {
		t.lastByCourse[courseID] = models.LastPosition{URL: url}
		t.saveLastLocked()
	}

	t.loading = true
	t.activeGen++

	logger.Debug("lesson opened", zap.String("url", url), zap.Int64("gen", t.activeGen))
	return t.activeGen, t.progress[url]
}

// MetadataReady records the lesson duration once the player knows it and
// returns the clamped resume target. A stale generation token (a newer load
// has started) or a mismatched URL makes this a no-op: that is the
// cancellation mechanism for late metadata callbacks racing a lesson switch.
func (t *ProgressTracker) MetadataReady(gen int64, url string, duration float64) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.activeGen || t.currentURL == "" || t.currentURL != url {
		return 0, false
	}

	if duration < 0 {
		duration = 0
	}
	desired := t.progress[url].Time
	t.setProgLocked(url, func(rec *models.ProgressRecord) {
		rec.Duration = duration
	})

	target := t.clampTime(desired, duration)
	if target <= t.cfg.MinResumeSeek {
		target = 0
	}
	return target, true
}

// SettleLoaded clears the loading state for the given generation. Position
// writes are suppressed while loading so the transient pre-seek position is
// never persisted as the real one.
func (t *ProgressTracker) SettleLoaded(gen int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen == t.activeGen && t.currentURL != "" {
		t.loading = false
	}
}

// Report persists the current playback position. Unforced reports are
// throttled and skipped entirely while a lesson is loading; forced reports
// (pause, seek, tab hidden, unload) always write, except that one forced
// report is swallowed right after Clear. Returns the stored record and
// whether a write happened.
func (t *ProgressTracker) Report(position, duration float64, forced bool) (models.ProgressRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistLocked(position, duration, forced)
}

// Ended marks the current lesson completed after playback reached its
// natural end, snapping the stored time to the full duration.
func (t *ProgressTracker) Ended(position, duration float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentURL == "" {
		return
	}
	t.completeLocked(position, duration)
}

// MarkDone marks the current lesson completed on explicit user action.
func (t *ProgressTracker) MarkDone(duration float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentURL == "" {
		return
	}
	rec := t.progress[t.currentURL]
	t.completeLocked(rec.Time, duration)
}

// Clear deletes the stored record for the current lesson entirely and arms
// the one-shot forced-save suppression, so the player's reset-to-zero does
// not get re-recorded.
func (t *ProgressTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentURL == "" {
		return
	}
	delete(t.progress, t.currentURL)
	t.saveProgressLocked()
	t.suppressForced = true
}

// CloseCourse force-persists the outgoing position and resets the session
// state, leaving no active lesson.
func (t *ProgressTracker) CloseCourse(position, duration float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentURL != "" {
		t.persistLocked(position, duration, true)
	}
	t.currentURL = ""
	t.currentCourse = ""
	t.loading = false
}

// Resume picks the default lesson when a course is reopened: the
// last-opened lesson if it still exists in the freshly scanned index,
// otherwise the first lesson of the first section. Nil when the index has
// no lessons.
func (t *ProgressTracker) Resume(courseID string, index *models.CourseIndex) *models.LessonRef {
	t.mu.Lock()
	last, ok := t.lastByCourse[courseID]
	t.mu.Unlock()

	if ok && last.URL != "" {
		for _, sec := range index.Items {
			for _, v := range sec.Videos {
				if v.URL == last.URL {
					return &models.LessonRef{
						URL:          v.URL,
						Title:        v.Title,
						SectionTitle: sec.Title,
						SectionOrder: sec.Order,
					}
				}
			}
		}
	}

	if len(index.Items) > 0 && len(index.Items[0].Videos) > 0 {
		first := index.Items[0].Videos[0]
		return &models.LessonRef{
			URL:          first.URL,
			Title:        first.Title,
			SectionTitle: index.Items[0].Title,
			SectionOrder: index.Items[0].Order,
		}
	}
	return nil
}

// Snapshot returns a copy of all stored progress records.
func (t *ProgressTracker) Snapshot() map[string]models.ProgressRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]models.ProgressRecord, len(t.progress))
	for k, v := range t.progress {
		out[k] = v
	}
	return out
}

// CountWatched tallies completed lessons across an index.
func (t *ProgressTracker) CountWatched(index *models.CourseIndex) (watched, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sec := range index.Items {
		total += len(sec.Videos)
		for _, v := range sec.Videos {
			if t.progress[v.URL].Completed {
				watched++
			}
		}
	}
	return watched, total
}

// persistLocked is the single write path for position reports.
func (t *ProgressTracker) persistLocked(position, duration float64, forced bool) (models.ProgressRecord, bool) {
	if t.currentURL == "" {
		return models.ProgressRecord{}, false
	}
	if forced && t.suppressForced {
		t.suppressForced = false
		return t.progress[t.currentURL], false
	}
	if t.loading && !forced {
		return t.progress[t.currentURL], false
	}

	nowMs := t.now().UnixMilli()
	if !forced && nowMs-t.lastSaveMs < t.cfg.SaveThrottle.Milliseconds() {
		return t.progress[t.currentURL], false
	}
	t.lastSaveMs = nowMs

	url := t.currentURL
	dur := duration
	if dur <= 0 {
		dur = t.progress[url].Duration
	}
	completed := dur > 0 && position/dur >= t.cfg.CompletionRatio
	storedTime := position
	if completed {
		// Completed lessons always report the full duration.
		storedTime = dur
	}

	t.setProgLocked(url, func(rec *models.ProgressRecord) {
		rec.Time = storedTime
		rec.Duration = dur
		rec.Completed = completed
	})
	return t.progress[url], true
}

// completeLocked marks the current lesson watched, snapping time to the
// duration when known, or to the best-known time otherwise.
func (t *ProgressTracker) completeLocked(position, duration float64) {
	url := t.currentURL
	dur := duration
	if dur <= 0 {
		dur = t.progress[url].Duration
	}
	storedTime := dur
	if storedTime <= 0 {
		storedTime = position
	}

	t.setProgLocked(url, func(rec *models.ProgressRecord) {
		rec.Time = storedTime
		rec.Duration = dur
		rec.Completed = true
	})
}

// clampTime bounds a stored position so resuming never lands within the
// trailing margin of the media's end. Unknown duration leaves it unclamped.
func (t *ProgressTracker) clampTime(pos, duration float64) float64 {
	if pos < 0 {
		pos = 0
	}
	if duration <= 0 {
		return pos
	}
	limit := duration - t.cfg.EndClampMargin
	if limit < 0 {
		limit = 0
	}
	if pos > limit {
		return limit
	}
	return pos
}

// setProgLocked merges a mutation into the record for url, stamps it and
// persists the whole map. Store failures are logged and swallowed:
// progress tracking is best-effort and must never block playback.
func (t *ProgressTracker) setProgLocked(url string, mutate func(*models.ProgressRecord)) {
	rec := t.progress[url]
	mutate(&rec)
	rec.UpdatedAt = t.now().UnixMilli()
	t.progress[url] = rec
	t.saveProgressLocked()
}

func (t *ProgressTracker) saveProgressLocked() {
	if err := t.store.SaveProgress(t.progress); err != nil {
		logger.Warn("progress save failed", zap.Error(err))
	}
}

func (t *ProgressTracker) saveLastLocked() {
	if err := t.store.SaveLast(t.lastByCourse); err != nil {
		logger.Warn("last-position save failed", zap.Error(err))
	}
}
