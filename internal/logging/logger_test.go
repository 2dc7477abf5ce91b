package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLogging() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	opts = Options{}
}

// TestAllCategoriesLog tests that all categories create log files when debug
// mode is on
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	resetLogging()
	defer resetLogging()

	if err := Configure(tempDir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to configure logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategoryEngine,
		CategoryAssembler,
		CategoryFilter,
		CategoryVendor,
		CategoryPreset,
		CategorySession,
		CategorySettings,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range categories {
		logPath := filepath.Join(tempDir, "logs", date+"_"+string(cat)+".log")
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Errorf("Expected log file for %s: %v", cat, err)
			continue
		}
		content := string(data)
		for _, level := range []string{"[INFO]", "[DEBUG]", "[WARN]", "[ERROR]"} {
			if !strings.Contains(content, level) {
				t.Errorf("Log file for %s missing %s entry", cat, level)
			}
		}
	}
}

// TestProductionModeNoOp verifies nothing is written when debug mode is off
func TestProductionModeNoOp(t *testing.T) {
	tempDir := t.TempDir()
	resetLogging()
	defer resetLogging()

	if err := Configure(tempDir, Options{DebugMode: false, Level: "debug"}); err != nil {
		t.Fatalf("Failed to configure logging: %v", err)
	}

	Engine("this should go nowhere")
	VendorError("this should go nowhere either")

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Error("Expected no logs directory in production mode")
	}
}

// TestCategoryFilter verifies disabled categories are no-ops while enabled
// ones still log
func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()
	resetLogging()
	defer resetLogging()

	err := Configure(tempDir, Options{
		DebugMode: true,
		Level:     "debug",
		Categories: map[string]bool{
			"engine": true,
			"vendor": false,
		},
	})
	if err != nil {
		t.Fatalf("Failed to configure logging: %v", err)
	}

	if !IsCategoryEnabled(CategoryEngine) {
		t.Error("engine category should be enabled")
	}
	if IsCategoryEnabled(CategoryVendor) {
		t.Error("vendor category should be disabled")
	}
	// Unlisted categories default to enabled
	if !IsCategoryEnabled(CategoryPreset) {
		t.Error("unlisted category should default to enabled")
	}

	Engine("engine message")
	Vendor("vendor message")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(tempDir, "logs", date+"_engine.log")); err != nil {
		t.Errorf("Expected engine log file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "logs", date+"_vendor.log")); !os.IsNotExist(err) {
		t.Error("Expected no vendor log file")
	}
}

// TestLevelGating verifies messages below the configured level are dropped
func TestLevelGating(t *testing.T) {
	tempDir := t.TempDir()
	resetLogging()
	defer resetLogging()

	if err := Configure(tempDir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Failed to configure logging: %v", err)
	}

	logger := Get(CategoryEngine)
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept warn")
	logger.Error("kept error")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(tempDir, "logs", date+"_engine.log"))
	if err != nil {
		t.Fatalf("Expected engine log file: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Error("Messages below level should be dropped")
	}
	if !strings.Contains(content, "kept warn") || !strings.Contains(content, "kept error") {
		t.Error("Warn/error messages should be kept")
	}
}

func TestTimer(t *testing.T) {
	tempDir := t.TempDir()
	resetLogging()
	defer resetLogging()

	if err := Configure(tempDir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to configure logging: %v", err)
	}

	timer := StartTimer(CategoryEngine, "test operation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()
	if elapsed <= 0 {
		t.Error("Expected positive elapsed time")
	}
}
