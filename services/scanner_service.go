package services

import (
	"math"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"course-player-backend/models"
)

// videoExtensions is the set of file extensions treated as playable lessons.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

// folderOrderPattern parses a section folder name into (order, title):
// optional leading '#', leading digits, optional -/_/. separator, title.
var folderOrderPattern = regexp.MustCompile(`^#?\s*(\d+)\s*[-_.]?\s*(.*)$`)

// orderLast sorts folders without a numeric prefix after all numbered ones.
const orderLast = math.MaxInt

// CourseFileURL builds the id-qualified serving URL for a lesson.
func CourseFileURL(courseID, rel string) string {
	safe := strings.ReplaceAll(rel, "\\", "/")
	return "/api/courses/" + courseID + "/file?rel=" + url.QueryEscape(safe)
}

// ScanCourse walks a course root one level deep and returns its ordered
// section/lesson index. Directories that cannot be enumerated are treated
// as empty, so one bad folder never aborts the whole index.
func ScanCourse(root, courseID string) *models.CourseIndex {
	sections := collectSections(root, func(folder, file, rel string) string {
		return CourseFileURL(courseID, rel)
	})

	videoCount := 0
	firstRel := ""
	for _, sec := range sections {
		videoCount += len(sec.Videos)
	}
	if len(sections) > 0 && len(sections[0].Videos) > 0 {
		firstRel = sections[0].Videos[0].Rel
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &models.CourseIndex{
		Root:          abs,
		Count:         len(sections),
		VideoCount:    videoCount,
		FirstVideoRel: firstRel,
		Items:         sections,
	}
}

// ScanLegacyRoot scans the unmanaged flat media root. Same grouping,
// filtering and ordering rules as ScanCourse, but lesson URLs are built
// directly from the folder and file names.
func ScanLegacyRoot(root string) *models.LegacyIndex {
	sections := collectSections(root, func(folder, file, rel string) string {
		return "/" + url.PathEscape(folder) + "/" + url.PathEscape(file)
	})

	items := make([]models.LegacySection, 0, len(sections))
	for _, sec := range sections {
		videos := make([]models.LegacyVideo, 0, len(sec.Videos))
		for _, v := range sec.Videos {
			videos = append(videos, models.LegacyVideo{Title: v.Title, File: v.File, URL: v.URL})
		}
		items = append(items, models.LegacySection{
			Folder: sec.Folder,
			Order:  sec.Order,
			Title:  sec.Title,
			Videos: videos,
		})
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &models.LegacyIndex{
		Root:  abs,
		Count: len(items),
		Items: items,
	}
}

// collectSections is the shared walk: one level of sub-directories, video
// files grouped per folder, sections with no playable media dropped.
func collectSections(root string, buildURL func(folder, file, rel string) string) []models.CourseSection {
	var sections []models.CourseSection

	for _, dir := range safeReadDirNames(root, true) {
		order, title := parseFolderName(dir)

		var videos []models.CourseVideo
		for _, name := range safeReadDirNames(filepath.Join(root, dir), false) {
			ext := strings.ToLower(filepath.Ext(name))
			if !videoExtensions[ext] {
				continue
			}

			rel := dir + "/" + name
			videos = append(videos, models.CourseVideo{
				Title: strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name))),
				File:  name,
				Rel:   rel,
				URL:   buildURL(dir, name, rel),
			})
		}

		if len(videos) == 0 {
			continue
		}

		sort.Slice(videos, func(i, j int) bool {
			return strings.ToLower(videos[i].Title) < strings.ToLower(videos[j].Title)
		})

		sections = append(sections, models.CourseSection{
			Folder: dir,
			Order:  order,
			Title:  title,
			Videos: videos,
		})
	}

	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Order != sections[j].Order {
			return sections[i].Order < sections[j].Order
		}
		return strings.ToLower(sections[i].Title) < strings.ToLower(sections[j].Title)
	})

	return sections
}

// parseFolderName extracts the numeric order prefix and title from a section
// folder name. Folders without a numeric prefix get the sentinel last order
// and keep their full name as title.
func parseFolderName(name string) (int, string) {
	n := strings.TrimSpace(name)
	m := folderOrderPattern.FindStringSubmatch(n)
	if m == nil {
		return orderLast, n
	}

	order, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits too long for an int; treat like an unnumbered folder.
		return orderLast, n
	}

	title := strings.TrimSpace(m[2])
	if title == "" {
		title = n
	}
	return order, title
}

// safeReadDirNames enumerates entries of dir, keeping only directories or
// only regular files. Enumeration errors degrade to an empty listing.
func safeReadDirNames(dir string, wantDirs bool) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() == wantDirs {
			names = append(names, e.Name())
		}
	}
	return names
}
