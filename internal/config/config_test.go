package config

import "testing"

func TestDefaultFillsEveryField(t *testing.T) {
	c := Default()
	if c.MaxConcurrentTaskNumber != DefaultMaxConcurrentTaskNumber {
		t.Errorf("MaxConcurrentTaskNumber = %d", c.MaxConcurrentTaskNumber)
	}
	if c.MinimumChunkSize != DefaultMinimumChunkSize {
		t.Errorf("MinimumChunkSize = %d", c.MinimumChunkSize)
	}
	if c.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
	if c.SSHServers == nil || c.MinioAliases == nil {
		t.Error("alias maps should be initialized, not nil")
	}
}

func TestLoadCreatesFileOnFirstRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrentTaskNumber != DefaultMaxConcurrentTaskNumber {
		t.Errorf("unexpected default: %d", cfg.MaxConcurrentTaskNumber)
	}

	cfg2, err := Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if cfg2.UserAgent != cfg.UserAgent {
		t.Errorf("round trip mismatch: %q != %q", cfg2.UserAgent, cfg.UserAgent)
	}
}
