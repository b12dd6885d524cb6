package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrSettingsNotWritable marks a save failure the user can act on
// (permissions or location), as opposed to transient I/O trouble.
var ErrSettingsNotWritable = errors.New("settings file is not writable")

// Settings is the persisted printer configuration. After Load the
// in-memory copy is the source of truth; it may diverge from disk until
// Save rewrites the file in full. Unknown keys in the file are ignored and
// missing keys keep their defaults.
type Settings struct {
	BulkDelimiter  string `json:"bulk_delimiter"`
	AppearanceMode string `json:"appearance_mode"`
	ColorTheme     string `json:"color_theme"`
	FontFamily     string `json:"font_family"`
	PrinterIP      string `json:"printer_ip"`
	MQTTHost       string `json:"mqtt_host"`
	MQTTPort       int    `json:"mqtt_port"`
	MQTTUser       string `json:"mqtt_user"`
	MQTTPass       string `json:"mqtt_pass"`
	MQTTTopic      string `json:"mqtt_topic"`
	MQTTUseTLS     bool   `json:"mqtt_use_tls"`
}

// DefaultSettings returns the settings used before any file exists.
func DefaultSettings() *Settings {
	return &Settings{
		BulkDelimiter:  "::",
		AppearanceMode: "System",
		ColorTheme:     "blue",
		FontFamily:     "Poppins",
		PrinterIP:      "",
		MQTTHost:       "",
		MQTTPort:       8883,
		MQTTUser:       "",
		MQTTPass:       "",
		MQTTTopic:      "Prn20B1B50C2199",
		MQTTUseTLS:     true,
	}
}

// LoadSettings reads the JSON settings file at path. A missing file yields
// the defaults; a malformed file is an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	return s, nil
}

// Save rewrites the settings file in full.
func (s *Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrSettingsNotWritable, path)
		}
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
