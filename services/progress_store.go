package services

import (
	"go.uber.org/zap"

	"course-player-backend/logger"
	"course-player-backend/models"
	"course-player-backend/utils"
)

// ProgressStore is the key-value persistence behind the progress tracker.
// Implementations are best-effort: loads fall back to empty maps on
// corruption, and the tracker ignores save errors.
type ProgressStore interface {
	LoadProgress() map[string]models.ProgressRecord
	SaveProgress(map[string]models.ProgressRecord) error
	LoadLast() map[string]models.LastPosition
	SaveLast(map[string]models.LastPosition) error
}

// FileProgressStore persists the progress maps as two JSON files.
type FileProgressStore struct {
	progressFile string
	lastFile     string
}

// NewFileProgressStore creates a store over the given file paths.
func NewFileProgressStore(progressFile, lastFile string) *FileProgressStore {
	return &FileProgressStore{progressFile: progressFile, lastFile: lastFile}
}

// LoadProgress reads the lesson progress map, empty on any failure.
func (s *FileProgressStore) LoadProgress() map[string]models.ProgressRecord {
	out := map[string]models.ProgressRecord{}
	if !utils.FileExists(s.progressFile) {
		return out
	}
	if err := utils.ReadJSON(s.progressFile, &out); err != nil {
		logger.Warn("progress store unreadable, starting empty",
			zap.String("file", s.progressFile), zap.Error(err))
		return map[string]models.ProgressRecord{}
	}
	return out
}

// SaveProgress rewrites the lesson progress map.
func (s *FileProgressStore) SaveProgress(m map[string]models.ProgressRecord) error {
	return utils.WriteJSON(s.progressFile, m)
}

// LoadLast reads the per-course last-opened map, empty on any failure.
func (s *FileProgressStore) LoadLast() map[string]models.LastPosition {
	out := map[string]models.LastPosition{}
	if !utils.FileExists(s.lastFile) {
		return out
	}
	if err := utils.ReadJSON(s.lastFile, &out); err != nil {
		logger.Warn("last-position store unreadable, starting empty",
			zap.String("file", s.lastFile), zap.Error(err))
		return map[string]models.LastPosition{}
	}
	return out
}

// SaveLast rewrites the per-course last-opened map.
func (s *FileProgressStore) SaveLast(m map[string]models.LastPosition) error {
	return utils.WriteJSON(s.lastFile, m)
}
