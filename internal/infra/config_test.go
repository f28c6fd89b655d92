package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("OUTPUT_BASE_DIR", "")
	t.Setenv("PICBATCH_MOCK_RUNNER", "")
	t.Setenv("PICBATCH_ENABLE_REAL_RUNNER", "")
	t.Setenv("PICBATCH_TARGET_URL", "")
	t.Setenv("PICBATCH_GENERATION_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.OutputBaseDir != "./output" {
		t.Fatalf("OutputBaseDir mismatch: got %q want %q", cfg.OutputBaseDir, "./output")
	}
	if cfg.TargetURL != "https://chatgpt.com/" {
		t.Fatalf("TargetURL mismatch: got %q", cfg.TargetURL)
	}
	if cfg.GenerationTimeout != 240*time.Second {
		t.Fatalf("GenerationTimeout mismatch: got %v", cfg.GenerationTimeout)
	}
	if cfg.MockRunner || cfg.EnableRealRunner {
		t.Fatalf("runner flags should default to false: mock=%v real=%v", cfg.MockRunner, cfg.EnableRealRunner)
	}
}

func TestLoadConfigRunnerFlagsMutuallyExclusive(t *testing.T) {
	t.Setenv("PICBATCH_MOCK_RUNNER", "1")
	t.Setenv("PICBATCH_ENABLE_REAL_RUNNER", "true")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should reject both runner flags enabled")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback bool
		want     bool
	}{
		{name: "one", value: "1", fallback: false, want: true},
		{name: "true", value: "true", fallback: false, want: true},
		{name: "yes mixed case", value: "Yes", fallback: false, want: true},
		{name: "zero", value: "0", fallback: true, want: false},
		{name: "off", value: "off", fallback: true, want: false},
		{name: "garbage keeps fallback", value: "maybe", fallback: true, want: true},
		{name: "empty keeps fallback", value: "", fallback: true, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PICBATCH_TEST_BOOL", tc.value)
			if got := getEnvBool("PICBATCH_TEST_BOOL", tc.fallback); got != tc.want {
				t.Fatalf("getEnvBool(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
