package logger

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// dailyWriter writes to attendance-<date>.log and switches files when the
// local date changes. Size based rotation within a day is left to lumberjack.
type dailyWriter struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *lumberjack.Logger
}

func newDailyWriter(dir string) *dailyWriter {
	return &dailyWriter{dir: dir, now: time.Now}
}

// LogFileName is the log file written on day (YYYY-MM-DD).
func LogFileName(day string) string {
	return fmt.Sprintf("attendance-%s.log", day)
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().Format("2006-01-02")
	if w.file == nil || day != w.day {
		if w.file != nil {
			w.file.Close()
		}
		w.day = day
		w.file = &lumberjack.Logger{
			Filename:   filepath.Join(w.dir, LogFileName(day)),
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		}
	}
	return w.file.Write(p)
}

func (w *dailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
