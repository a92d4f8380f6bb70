package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"course-player-backend/config"
	"course-player-backend/handlers"
	"course-player-backend/logger"
	"course-player-backend/services"
	"course-player-backend/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the course player HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() {
	cfg := config.LoadConfig()

	logger.InitLogger(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	})
	defer logger.Sync()

	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		logger.Error("failed to create data directory", zap.Error(err))
		os.Exit(1)
	}

	// Services
	registry := services.NewRegistryService(cfg.CoursesFile, cfg.LegacyCoursesFiles())
	store := services.NewFileProgressStore(cfg.ProgressFile, cfg.LastFile)
	tracker := services.NewProgressTracker(store, cfg.Playback)
	picker := services.NewCommandFolderPicker(cfg.PickerCmd)

	// Handlers
	courseHandler := handlers.NewCourseHandler(registry, picker, cfg.MediaDir)
	progressHandler := handlers.NewProgressHandler(tracker, registry)

	r := mux.NewRouter()
	r.Use(handlers.LoggingMiddleware)

	// Catalog routes
	r.HandleFunc("/api/courses", courseHandler.ListCourses).Methods("GET")
	r.HandleFunc("/api/courses/pick", courseHandler.PickCourse).Methods("GET", "POST")
	r.HandleFunc("/api/courses/remove", courseHandler.RemoveCourse).Methods("POST")
	r.HandleFunc("/api/courses/remove", courseHandler.RemoveCourseQuery).Methods("GET")
	r.HandleFunc("/api/courses/{id}/index.json", courseHandler.CourseIndex).Methods("GET")
	r.HandleFunc("/api/courses/{id}/file", courseHandler.ServeCourseFile).Methods("GET")
	r.HandleFunc("/api/courses/{id}/resume", progressHandler.Resume).Methods("GET")
	r.HandleFunc("/index.json", courseHandler.LegacyIndex).Methods("GET")

	// Playback progress routes
	r.HandleFunc("/api/progress", progressHandler.Snapshot).Methods("GET")
	r.HandleFunc("/api/progress/open", progressHandler.OpenLesson).Methods("POST")
	r.HandleFunc("/api/progress/metadata", progressHandler.Metadata).Methods("POST")
	r.HandleFunc("/api/progress/settle", progressHandler.Settle).Methods("POST")
	r.HandleFunc("/api/progress/report", progressHandler.Report).Methods("POST")
	r.HandleFunc("/api/progress/ended", progressHandler.Ended).Methods("POST")
	r.HandleFunc("/api/progress/markdone", progressHandler.MarkDone).Methods("POST")
	r.HandleFunc("/api/progress/clear", progressHandler.Clear).Methods("POST")
	r.HandleFunc("/api/progress/close", progressHandler.CloseCourse).Methods("POST")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Range"},
	})

	server := &http.Server{
		Addr:        "127.0.0.1:" + cfg.Port,
		Handler:     corsHandler.Handler(r),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("coursesFile", cfg.CoursesFile),
			zap.String("mediaDir", cfg.MediaDir),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
