package api

import (
	"archive/zip"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/logger"
)

// recentLogsLimit caps the entries returned by /logs/recent.
const recentLogsLimit = 100

func (s *RESTServer) handleDownloadLogs(c *gin.Context) {
	logDir := s.cfg.LogDir
	if logDir == "" {
		logDir = logger.GetLogDir()
	}
	if _, err := os.Stat(logDir); err != nil {
		respondNotFound(c, "Log directory")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=tickarr_logs.zip")
	c.Header("Content-Type", "application/zip")

	zipWriter := zip.NewWriter(c.Writer)
	defer zipWriter.Close()

	err := filepath.Walk(logDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		// Use .txt extension for Windows compatibility
		baseName := filepath.Base(path)
		if strings.HasSuffix(baseName, ".log") {
			baseName = strings.TrimSuffix(baseName, ".log") + ".txt"
		}
		header.Name = baseName
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})

	if err != nil {
		logger.Errorf("Failed to zip logs: %v", err)
	}
}

// handleRecentLogs serves the in-memory log history, optionally filtered to
// a minimum level.
func (s *RESTServer) handleRecentLogs(c *gin.Context) {
	limit := queryInt(c, "limit", recentLogsLimit)
	if limit < 1 || limit > recentLogsLimit {
		limit = recentLogsLimit
	}

	entries := logger.Recent(limit)
	if lvl := c.Query("level"); lvl != "" {
		minLevel := logger.ParseLevel(lvl)
		filtered := make([]logger.LogEntry, 0, len(entries))
		for _, e := range entries {
			if logger.AtLeast(e.Level, minLevel) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	c.JSON(http.StatusOK, entries)
}
