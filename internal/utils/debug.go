package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caracaldl/caracal/internal/config"
)

var (
	debugOnce   sync.Once
	debugLogger *log.Logger
	debugFile   *os.File
)

// Debug appends a timestamped line to the daily debug log file under
// config.GetLogsDir(). Failures to open the log file are swallowed: debug
// logging must never be the reason a download fails.
func Debug(format string, args ...any) {
	debugOnce.Do(initDebugLogger)
	if debugLogger == nil {
		return
	}
	debugLogger.Printf(format, args...)
}

func initDebugLogger() {
	dir := config.GetLogsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("caracal-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	debugFile = f
	debugLogger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
}
