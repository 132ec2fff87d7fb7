package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// autoCompactKey is the only key emberwatch touches in the assistant's
// settings file. Every other key round-trips verbatim.
const autoCompactKey = "autoCompactEnabled"

// LoadAutoCompact reads the auto-compact flag from the assistant's
// settings file. A missing file or missing key means auto-compact is on,
// which is the assistant's own default.
func LoadAutoCompact() (bool, error) {
	path, err := AssistantSettingsPath()
	if err != nil {
		return true, err
	}
	doc, err := readAssistantSettings(path)
	if err != nil {
		return true, err
	}
	raw, ok := doc[autoCompactKey]
	if !ok {
		return true, nil
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		return true, fmt.Errorf("invalid %s value in %s: %w", autoCompactKey, path, err)
	}
	return enabled, nil
}

// SetAutoCompact writes the auto-compact flag into the assistant's
// settings file. The file is shared with the assistant tool, so this is a
// fresh read-merge-write on every call: unknown keys are preserved byte
// for byte and nothing is cached across writes.
func SetAutoCompact(enabled bool) error {
	path, err := AssistantSettingsPath()
	if err != nil {
		return err
	}
	doc, err := readAssistantSettings(path)
	if err != nil {
		return err
	}

	value, err := json.Marshal(enabled)
	if err != nil {
		return err
	}
	doc[autoCompactKey] = value

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal assistant settings: %w", err)
	}
	data = append(data, '\n')
	return writeFileAtomic(path, data, 0644)
}

// ToggleAutoCompact flips the auto-compact flag and returns the new value.
func ToggleAutoCompact() (bool, error) {
	enabled, err := LoadAutoCompact()
	if err != nil {
		return enabled, err
	}
	next := !enabled
	if err := SetAutoCompact(next); err != nil {
		return enabled, err
	}
	return next, nil
}

// readAssistantSettings reads the settings document as a flat key map so
// unknown keys survive a rewrite. A missing file yields an empty document.
func readAssistantSettings(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read assistant settings %s: %w", path, err)
	}

	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse assistant settings %s: %w", path, err)
	}
	return doc, nil
}
