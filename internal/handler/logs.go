package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"attendance/internal/logger"
)

// LogsHandler serves the rotated log files under logDir. Without a date
// query it lists the available days; with ?date=YYYY-MM-DD it streams that
// day's file as text/plain.
func LogsHandler(logDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			listLogs(w, logDir)
			return
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		serveLogFile(w, r, logDir, logger.LogFileName(date))
	}
}

func listLogs(w http.ResponseWriter, logDir string) {
	matches, _ := filepath.Glob(filepath.Join(logDir, "attendance-*.log"))
	days := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "attendance-"), ".log")
		days = append(days, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(strings.Join(days, "\n")))
}

// serveLogFile sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}
