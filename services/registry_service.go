package services

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"course-player-backend/logger"
	"course-player-backend/models"
	"course-player-backend/utils"
)

// ErrFolderMissing is returned when a course path does not exist on disk.
var ErrFolderMissing = errors.New("selected folder does not exist")

// RegistryService owns the persisted course catalog. Every operation runs
// under one exclusive critical section and rewrites the whole store file:
// the catalog holds tens of entries at most, so serialized full rewrites
// are simpler than incremental patching and cannot lose updates.
type RegistryService struct {
	coursesFile string
	mutex       sync.Mutex
	now         func() time.Time
}

// NewRegistryService creates a registry backed by coursesFile. If the file
// does not exist yet, the first legacy store found among legacyCandidates
// is copied (never moved) into place.
func NewRegistryService(coursesFile string, legacyCandidates []string) *RegistryService {
	s := &RegistryService{
		coursesFile: coursesFile,
		now:         time.Now,
	}
	s.migrateLegacyStore(legacyCandidates)
	return s
}

// Upsert adds the folder at rawPath to the catalog, or refreshes the
// existing entry when the normalized path is already known. Returns the
// course id.
func (s *RegistryService) Upsert(rawPath string) (string, error) {
	cleaned := strings.Trim(strings.TrimSpace(rawPath), `"`)
	root, err := filepath.Abs(cleaned)
	if err != nil {
		return "", ErrFolderMissing
	}
	if !utils.DirExists(root) {
		return "", ErrFolderMissing
	}

	id := utils.HashPath(root)
	title := filepath.Base(strings.TrimRight(root, "/\\"))
	if title == "" || title == "." || title == string(filepath.Separator) {
		title = root
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	courses := s.loadLocked()
	now := s.now().Unix()

	found := false
	for i := range courses {
		if courses[i].ID == id {
			courses[i].Path = root
			courses[i].Title = title
			courses[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		courses = append(courses, models.CourseEntry{
			ID:        id,
			Path:      root,
			Title:     title,
			AddedAt:   now,
			UpdatedAt: now,
		})
	}

	sortByTitle(courses)
	if err := s.saveLocked(courses); err != nil {
		return "", err
	}

	logger.Info("course upserted", zap.String("id", id), zap.String("path", root))
	return id, nil
}

// Remove deletes the entry for id and reports whether a removal occurred.
// The underlying folder and its files are never touched.
func (s *RegistryService) Remove(id string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	courses := s.loadLocked()
	kept := courses[:0]
	for _, c := range courses {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(courses) {
		return false, nil
	}

	if err := s.saveLocked(kept); err != nil {
		return false, err
	}
	logger.Info("course removed", zap.String("id", id))
	return true, nil
}

// Find returns the entry for id, if present.
func (s *RegistryService) Find(id string) (models.CourseEntry, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range s.loadLocked() {
		if c.ID == id {
			return c, true
		}
	}
	return models.CourseEntry{}, false
}

// ListSummaries folds every stored entry with a live scan of its folder.
// Entries whose folder is missing get a degraded summary without invoking
// the scanner.
func (s *RegistryService) ListSummaries() []models.CourseSummary {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	courses := s.loadLocked()
	summaries := make([]models.CourseSummary, 0, len(courses))
	for _, c := range courses {
		summary := models.CourseSummary{
			ID:        c.ID,
			Title:     c.Title,
			Path:      c.Path,
			UpdatedAt: c.UpdatedAt,
		}

		if utils.DirExists(c.Path) {
			summary.Exists = true
			idx := ScanCourse(c.Path, c.ID)
			summary.SectionCount = idx.Count
			summary.VideoCount = idx.VideoCount
			if idx.FirstVideoRel != "" {
				summary.FirstVideoURL = CourseFileURL(c.ID, idx.FirstVideoRel)
			}
		}

		summaries = append(summaries, summary)
	}
	return summaries
}

// loadLocked reads the whole catalog. A missing or unparsable store file
// yields an empty list rather than an error, so a corrupt file never blocks
// startup. Caller must hold the mutex.
func (s *RegistryService) loadLocked() []models.CourseEntry {
	if !utils.FileExists(s.coursesFile) {
		return nil
	}

	var data models.CoursesFile
	if err := utils.ReadJSON(s.coursesFile, &data); err != nil {
		logger.Warn("courses file unreadable, starting empty",
			zap.String("file", s.coursesFile), zap.Error(err))
		return nil
	}
	return data.Courses
}

// saveLocked rewrites the whole catalog. Caller must hold the mutex.
func (s *RegistryService) saveLocked(courses []models.CourseEntry) error {
	if courses == nil {
		courses = []models.CourseEntry{}
	}
	return utils.WriteJSON(s.coursesFile, models.CoursesFile{Courses: courses})
}

// migrateLegacyStore adopts the first legacy catalog found when no primary
// store exists yet. Copy, not move: the legacy file is left in place.
func (s *RegistryService) migrateLegacyStore(candidates []string) {
	if utils.FileExists(s.coursesFile) {
		return
	}

	for _, legacy := range candidates {
		if !utils.FileExists(legacy) {
			continue
		}
		if err := utils.EnsureDir(filepath.Dir(s.coursesFile)); err != nil {
			logger.Warn("cannot create data directory", zap.Error(err))
			return
		}
		if err := utils.CopyFile(legacy, s.coursesFile); err != nil {
			logger.Warn("legacy catalog migration failed",
				zap.String("from", legacy), zap.Error(err))
			return
		}
		logger.Info("migrated legacy catalog", zap.String("from", legacy))
		return
	}
}

func sortByTitle(courses []models.CourseEntry) {
	sort.Slice(courses, func(i, j int) bool {
		return strings.ToLower(courses[i].Title) < strings.ToLower(courses[j].Title)
	})
}
