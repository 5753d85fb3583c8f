package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"livepush/internal/history"
	"livepush/internal/server"
	"livepush/internal/site"

	"github.com/spf13/cobra"
)

var (
	logFile  string
	host     string
	port     int
	testMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status server",
	Long: `Start the HTTP status server.

The server reports each environment's revision markers and the local
deployment history. It never triggers a deployment itself.`,
	RunE: runServe,
}

func init() {
	// Flags for serve command
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("LIVEPUSH_LOG_FILE", "./livepush.log"), "Path to log file")
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("LIVEPUSH_HOST", "127.0.0.1"), "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("LIVEPUSH_PORT", 5000), "Port to listen on")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("LIVEPUSH_SKIP_VALIDATION") == "1", "Enable test mode (no rate limiting, no journal)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting livepush status server")

	// Initialize history database
	var journal *history.Journal
	if !testMode {
		logger.Info("Opening history database", "db", dbPath)
		journal, err = history.NewJournal(dbPath)
		if err != nil {
			logger.Error("Failed to open history database", "error", err)
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer journal.Close()
	}

	srv := server.NewServer(cfg, journal, site.NewClient(), logger, testMode)

	logger.Info("Starting HTTP server", "host", host, "port", port)
	if err := srv.Start(host, port); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)

	return logger, file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
