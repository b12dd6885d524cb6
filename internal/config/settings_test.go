package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, "::", s.BulkDelimiter)
	assert.Equal(t, 8883, s.MQTTPort)
	assert.Equal(t, "Prn20B1B50C2199", s.MQTTTopic)
	assert.True(t, s.MQTTUseTLS)
	assert.Empty(t, s.PrinterIP)
	assert.Empty(t, s.MQTTHost)
}

func TestLoadSettings_MissingFileYieldsDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettings_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"printer_ip": "10.0.0.9"}`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.9", s.PrinterIP)
	assert.Equal(t, "::", s.BulkDelimiter)
	assert.Equal(t, 8883, s.MQTTPort)
	assert.True(t, s.MQTTUseTLS, "absent keys must keep their defaults, including booleans that default true")
}

func TestLoadSettings_UnknownKeysIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mqtt_host": "b.example", "legacy_field": 42}`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "b.example", s.MQTTHost)
}

func TestLoadSettings_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadSettings(path)
	require.Error(t, err)
}

func TestSettings_SaveRewritesFullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s := DefaultSettings()
	s.PrinterIP = "192.168.1.77"
	s.MQTTUseTLS = false
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	// Every key is present even at its zero value.
	for _, key := range []string{
		"bulk_delimiter", "appearance_mode", "color_theme", "font_family",
		"printer_ip", "mqtt_host", "mqtt_port", "mqtt_user", "mqtt_pass",
		"mqtt_topic", "mqtt_use_tls",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "192.168.1.77", raw["printer_ip"])
	assert.Equal(t, false, raw["mqtt_use_tls"])
}

func TestSettings_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s := DefaultSettings()
	s.MQTTHost = "relay.example.com"
	s.MQTTUser = "printer"
	s.BulkDelimiter = ";;"
	require.NoError(t, s.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSettings_SaveNotWritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err := DefaultSettings().Save(filepath.Join(dir, "settings.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettingsNotWritable)
}
