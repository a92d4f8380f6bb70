package models

// CourseEntry is a persisted catalog entry for one course folder.
// ID is derived from the normalized absolute path, so re-adding the same
// folder updates the existing entry instead of duplicating it.
type CourseEntry struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	AddedAt   int64  `json:"addedAt"`   // Unix seconds
	UpdatedAt int64  `json:"updatedAt"` // Unix seconds
}

// CoursesFile is the on-disk catalog store format.
type CoursesFile struct {
	Courses []CourseEntry `json:"courses"`
}

// CourseSummary is a catalog entry folded with a live scan of its folder.
type CourseSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	SectionCount  int    `json:"sectionCount"`
	VideoCount    int    `json:"videoCount"`
	FirstVideoURL string `json:"firstVideoUrl,omitempty"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// CourseIndex is the full section/lesson tree for one course. It is derived
// from the filesystem on every request and never persisted.
type CourseIndex struct {
	Root          string          `json:"root"`
	Count         int             `json:"count"`
	VideoCount    int             `json:"videoCount"`
	FirstVideoRel string          `json:"firstVideoRel,omitempty"`
	Items         []CourseSection `json:"items"`
}

// CourseSection groups the lessons of one immediate sub-directory.
type CourseSection struct {
	Folder string        `json:"folder"`
	Order  int           `json:"order"`
	Title  string        `json:"title"`
	Videos []CourseVideo `json:"videos"`
}

// CourseVideo is a single playable lesson.
type CourseVideo struct {
	Title string `json:"title"`
	File  string `json:"file"`
	Rel   string `json:"rel"`
	URL   string `json:"url"`
}

// LegacyIndex is the flat-root variant of CourseIndex served at /index.json.
// Its lesson URLs are built directly from folder and file names instead of
// an id-qualified endpoint.
type LegacyIndex struct {
	Root  string          `json:"root"`
	Count int             `json:"count"`
	Items []LegacySection `json:"items"`
}

// LegacySection mirrors CourseSection for the unmanaged root.
type LegacySection struct {
	Folder string        `json:"folder"`
	Order  int           `json:"order"`
	Title  string        `json:"title"`
	Videos []LegacyVideo `json:"videos"`
}

// LegacyVideo mirrors CourseVideo without a registry-relative path.
type LegacyVideo struct {
	Title string `json:"title"`
	File  string `json:"file"`
	URL   string `json:"url"`
}

// ProgressRecord is the stored watch state for one lesson URL.
type ProgressRecord struct {
	Time      float64 `json:"time"`      // seconds
	Duration  float64 `json:"duration"`  // seconds, 0 while unknown
	Completed bool    `json:"completed"`
	UpdatedAt int64   `json:"updatedAt"` // Unix milliseconds
}

// LastPosition points at the most recently opened lesson of a course.
type LastPosition struct {
	URL string `json:"url"`
}

// LessonRef identifies a lesson within its section, as handed to the player.
type LessonRef struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	SectionTitle string `json:"sectionTitle"`
	SectionOrder int    `json:"sectionOrder"`
}

// RemoveCourseRequest is the body of POST /api/courses/remove.
type RemoveCourseRequest struct {
	ID string `json:"id"`
}

// PickCourseRequest optionally carries an explicit path, bypassing the
// external folder picker.
type PickCourseRequest struct {
	Path string `json:"path"`
}

// OpenLessonRequest switches playback to a lesson. PrevTime/PrevDuration
// carry the outgoing lesson's position so it can be flushed before the switch.
type OpenLessonRequest struct {
	CourseID     string  `json:"courseId"`
	URL          string  `json:"url"`
	PrevTime     float64 `json:"prevTime"`
	PrevDuration float64 `json:"prevDuration"`
}

// MetadataRequest reports a lesson's duration once the player knows it.
type MetadataRequest struct {
	Gen      int64   `json:"gen"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// SettleRequest clears the loading state once the resume seek has settled.
type SettleRequest struct {
	Gen int64 `json:"gen"`
}

// ReportRequest is a playback position report. Forced reports bypass the
// save throttle (pause, seek, tab hidden, unload).
type ReportRequest struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Forced   bool    `json:"forced"`
}
