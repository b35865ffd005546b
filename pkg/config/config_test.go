package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "coastwatch.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {}, // No file
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Layers.WorkingEPSG != 32635 {
					t.Errorf("expected default working_epsg 32635, got %d", cfg.Layers.WorkingEPSG)
				}
				if cfg.Request.Retries != 5 {
					t.Errorf("expected default retries 5, got %d", cfg.Request.Retries)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "working_epsg: 32635") {
					t.Error("config file missing default working_epsg")
				}
				if !strings.Contains(string(content), "line_url:") {
					t.Error("config file missing predict URLs")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("server:\n  address: 0.0.0.0:8080\npredict:\n  line_url: http://model.internal/predict\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "0.0.0.0:8080" {
					t.Errorf("expected address '0.0.0.0:8080', got '%s'", cfg.Server.Address)
				}
				if cfg.Predict.LineURL != "http://model.internal/predict" {
					t.Errorf("expected custom line_url, got '%s'", cfg.Predict.LineURL)
				}
				// Untouched sections keep defaults.
				if cfg.DB.Path != "./data/coastwatch.db" {
					t.Errorf("expected default db path, got '%s'", cfg.DB.Path)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "0.0.0.0:8080") {
					t.Error("config file should persist custom value")
				}
			},
		},
		{
			name: "Env_Override_NotPersisted",
			setup: func() {
				t.Setenv("COASTWATCH_PREDICT_URL", "http://env-host/predict")
				err := os.WriteFile(configPath, []byte("db:\n  path: ./data/test.db\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Predict.LineURL != "http://env-host/predict" {
					t.Errorf("expected env line_url, got '%s'", cfg.Predict.LineURL)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "env-host") {
					t.Error("environment override should NOT be persisted to config file")
				}
			},
		},
		{
			name: "Invalid_YAML",
			setup: func() {
				err := os.WriteFile(configPath, []byte("predict: [not a map]"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_EPSG",
			setup: func() {
				err := os.WriteFile(configPath, []byte("layers:\n  working_epsg: 12345\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if err == nil {
				tt.validate(t, cfg)
				if tt.checkFile != nil {
					tt.checkFile(t)
				}
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "default_config.yaml")

	err := GenerateDefault(configPath)
	if err != nil {
		t.Fatalf("GenerateDefault() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("GenerateDefault() did not create file")
	}

	// Running again should not fail
	err = GenerateDefault(configPath)
	if err != nil {
		t.Errorf("GenerateDefault() error on second run = %v", err)
	}
}
