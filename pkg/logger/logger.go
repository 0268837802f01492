// Package logger provides leveled loggers shared by the whole service.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu           sync.RWMutex
	infoLogger   = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	errorLogger  = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	debugLogger  = log.New(io.Discard, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	debugEnabled bool
)

// Setup points the loggers at files under dir (info.log, error.log,
// debug.log). An empty dir keeps stdout/stderr.
func Setup(dir string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	debugEnabled = debug
	if dir == "" {
		infoLogger.SetOutput(os.Stdout)
		errorLogger.SetOutput(os.Stderr)
		if debug {
			debugLogger.SetOutput(os.Stdout)
		} else {
			debugLogger.SetOutput(io.Discard)
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
	infoFile, err := open("info.log")
	if err != nil {
		return fmt.Errorf("failed to open info log file: %w", err)
	}
	errorFile, err := open("error.log")
	if err != nil {
		return fmt.Errorf("failed to open error log file: %w", err)
	}
	infoLogger.SetOutput(infoFile)
	errorLogger.SetOutput(errorFile)

	if debug {
		debugFile, err := open("debug.log")
		if err != nil {
			return fmt.Errorf("failed to open debug log file: %w", err)
		}
		debugLogger.SetOutput(debugFile)
	} else {
		debugLogger.SetOutput(io.Discard)
	}
	return nil
}

// SetOutput sends every level to w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	infoLogger.SetOutput(w)
	errorLogger.SetOutput(w)
	debugLogger.SetOutput(w)
	debugEnabled = true
}

func Info(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	infoLogger.Output(2, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	errorLogger.Output(2, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !debugEnabled {
		return
	}
	debugLogger.Output(2, fmt.Sprintf(format, v...))
}

// LogOperation logs how long an operation took and whether it failed.
func LogOperation(operation string, startTime time.Time, err error) {
	duration := time.Since(startTime)
	if err != nil {
		Error("Operation %s failed after %v: %v", operation, duration, err)
		return
	}
	Info("Operation %s completed in %v", operation, duration)
}
