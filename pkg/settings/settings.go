// Package settings persists the coordinator's preferences between
// runs: the last applied capture settings and the listen port.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

// UserSettings holds persistable preferences.
type UserSettings struct {
	Port    int                     `json:"port"`
	Capture session.CaptureSettings `json:"capture"`
}

// Defaults returns the default settings.
func Defaults() UserSettings {
	return UserSettings{
		Port:    8080,
		Capture: session.DefaultSettings(),
	}
}

// getConfigPath returns the config file path.
// Uses XDG_CONFIG_HOME if set, otherwise the platform config dir.
func getConfigPath() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "gomeet")
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, "gomeet")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads settings from the config file.
// Returns defaults if the file doesn't exist or is invalid.
func Load() (UserSettings, error) {
	settings := Defaults()

	path, err := getConfigPath()
	if err != nil {
		return settings, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// First run, defaults apply.
			return settings, nil
		}
		return settings, err
	}

	// Parse JSON, keeping defaults for missing fields.
	if err := json.Unmarshal(data, &settings); err != nil {
		return Defaults(), nil
	}

	return settings, nil
}

// Save writes settings to the config file.
func Save(settings UserSettings) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
