package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port         string
	DataDir      string // directory holding the catalog and progress stores
	CoursesFile  string // persisted course catalog (pretty-printed JSON)
	ProgressFile string // lesson URL -> progress record store
	LastFile     string // course id -> last-opened lesson store
	MediaDir     string // legacy flat root served by /index.json
	PickerCmd    string // external folder picker command, empty means headless
	LogFile      string
	LogLevel     string

	Playback PlaybackConfig
}

// PlaybackConfig holds the playback tracking tunables. The completion ratio
// and end clamp margin are judgement calls rather than derived values, so
// they stay configurable.
type PlaybackConfig struct {
	CompletionRatio float64       // fraction of duration at which a lesson counts as watched
	EndClampMargin  float64       // seconds kept clear of end-of-media when resuming
	MinResumeSeek   float64       // below this resume target the player does not seek
	SaveThrottle    time.Duration // minimum gap between unforced persists
	SettleDelay     time.Duration // advisory delay before the player reports settle
	TickInterval    time.Duration // advisory backstop persist interval
}

// LoadConfig loads the configuration from environment variables or defaults
func LoadConfig() *Config {
	// godotenv.Load does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults")
	}

	dataDir := getEnv("DATA_DIR", defaultDataDir())

	cwd, _ := os.Getwd()
	defaultMediaDir := filepath.Join(filepath.Dir(cwd), "media")

	return &Config{
		Port:         getEnv("PORT", "8787"),
		DataDir:      dataDir,
		CoursesFile:  getEnv("COURSES_FILE", filepath.Join(dataDir, ".courses.json")),
		ProgressFile: getEnv("PROGRESS_FILE", filepath.Join(dataDir, "progress.json")),
		LastFile:     getEnv("LAST_FILE", filepath.Join(dataDir, "last.json")),
		MediaDir:     getEnv("MEDIA_DIR", defaultMediaDir),
		PickerCmd:    os.Getenv("PICKER_CMD"),
		LogFile:      getEnv("LOG_FILE", filepath.Join(dataDir, "course-player.log")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Playback: PlaybackConfig{
			CompletionRatio: getEnvFloat("COMPLETION_RATIO", 0.95),
			EndClampMargin:  getEnvFloat("END_CLAMP_MARGIN", 0.35),
			MinResumeSeek:   getEnvFloat("MIN_RESUME_SEEK", 0.2),
			SaveThrottle:    getEnvDuration("SAVE_THROTTLE", 900*time.Millisecond),
			SettleDelay:     getEnvDuration("SETTLE_DELAY", 150*time.Millisecond),
			TickInterval:    getEnvDuration("TICK_INTERVAL", 1500*time.Millisecond),
		},
	}
}

// LegacyCoursesFiles returns the legacy catalog locations checked, in order,
// when the primary courses file does not exist yet.
func (c *Config) LegacyCoursesFiles() []string {
	var candidates []string
	if base, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(base, "CoursePlayer", ".courses.json"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".courses.json"))
	}
	return candidates
}

func defaultDataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "course-player")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "data")
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat returns an environment variable as float64 or a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns an environment variable as a duration or a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
