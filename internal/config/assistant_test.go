package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAutoCompactDefaults(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{
			name:     "missing file",
			content:  "",
			expected: true,
		},
		{
			name:     "key absent",
			content:  `{"model":"opus"}`,
			expected: true,
		},
		{
			name:     "explicitly disabled",
			content:  `{"autoCompactEnabled":false}`,
			expected: false,
		},
		{
			name:     "explicitly enabled",
			content:  `{"autoCompactEnabled":true}`,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			t.Setenv(EnvAssistantSettings, path)

			enabled, err := LoadAutoCompact()
			if err != nil {
				t.Fatalf("LoadAutoCompact() error: %v", err)
			}
			if enabled != tt.expected {
				t.Errorf("LoadAutoCompact() = %v, want %v", enabled, tt.expected)
			}
		})
	}
}

func TestSetAutoCompactPreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	original := `{
  "model": "opus",
  "permissions": {"allow": ["Bash(ls:*)"], "deny": []},
  "autoCompactEnabled": true,
  "customSetting": 42
}`
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAssistantSettings, path)

	if err := SetAutoCompact(false); err != nil {
		t.Fatalf("SetAutoCompact() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("rewritten settings are not valid JSON: %v", err)
	}

	// The foreign keys must survive untouched.
	if string(doc["model"]) != `"opus"` {
		t.Errorf("model = %s, want %q", doc["model"], "opus")
	}
	if string(doc["customSetting"]) != "42" {
		t.Errorf("customSetting = %s, want 42", doc["customSetting"])
	}
	if _, ok := doc["permissions"]; !ok {
		t.Error("permissions key was dropped")
	}
	if string(doc["autoCompactEnabled"]) != "false" {
		t.Errorf("autoCompactEnabled = %s, want false", doc["autoCompactEnabled"])
	}
}

func TestToggleAutoCompactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	t.Setenv(EnvAssistantSettings, path)

	// Missing file: default is on, so the first toggle turns it off.
	enabled, err := ToggleAutoCompact()
	if err != nil {
		t.Fatalf("ToggleAutoCompact() error: %v", err)
	}
	if enabled {
		t.Error("first toggle should disable auto-compact")
	}

	enabled, err = ToggleAutoCompact()
	if err != nil {
		t.Fatalf("ToggleAutoCompact() error: %v", err)
	}
	if !enabled {
		t.Error("second toggle should re-enable auto-compact")
	}
}
