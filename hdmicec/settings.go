package hdmicec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const DefaultSettingsFile = "/opt/ds/cecData.json"

type settingsDocument struct {
	CecEnabled *bool `json:"cecEnabled,omitempty"`
}

// Settings persists the CEC enabled flag as {"cecEnabled": bool}.
type Settings struct {
	path string
}

func NewSettings(path string) *Settings {
	if path == "" {
		path = DefaultSettingsFile
	}
	return &Settings{path: path}
}

func (settings *Settings) Path() string {
	return settings.path
}

// Load returns false when the file is missing, unreadable or lacks the key.
func (settings *Settings) Load() bool {
	data, err := os.ReadFile(settings.path)
	if err != nil {
		log.WithFields(log.Fields{
			"file":  settings.path,
			"error": err,
		}).Info("CEC settings not readable, defaulting to disabled")
		return false
	}

	var document settingsDocument
	if err := json.Unmarshal(data, &document); err != nil {
		log.WithFields(log.Fields{
			"file":  settings.path,
			"error": err,
		}).Warn("CEC settings file is corrupt, defaulting to disabled")
		return false
	}

	if document.CecEnabled == nil {
		return false
	}
	return *document.CecEnabled
}

func (settings *Settings) Persist(enabled bool) error {
	data, err := json.Marshal(settingsDocument{CecEnabled: &enabled})
	if err != nil {
		return err
	}

	dir := filepath.Dir(settings.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cecData-*.json")
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing settings file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing settings file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), settings.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing settings file: %w", err)
	}

	return nil
}
