package storemodule

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/lumengallery/lumen/internal/logger"
)

// Settings is the user-editable configuration persisted next to the
// images as settings.json.
type Settings struct {
	AI struct {
		Model   string `json:"model"`
		APIKey  string `json:"apiKey"`
		AutoTag bool   `json:"autoTag"`
	} `json:"ai"`
	Images struct {
		SortBy        string `json:"sortBy"`
		SortDirection string `json:"sortDirection"`
		ThumbnailSize string `json:"thumbnailSize"`
	} `json:"images"`
	Search struct {
		ImagesPerPage     int    `json:"imagesPerPage"`
		DefaultSearchType string `json:"defaultSearchType"`
	} `json:"search"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.AI.Model = "openai"
	s.AI.AutoTag = false
	s.Images.SortBy = "dateAdded"
	s.Images.SortDirection = "desc"
	s.Images.ThumbnailSize = "medium"
	s.Search.ImagesPerPage = 12
	s.Search.DefaultSearchType = "all"
	return s
}

// SettingsStore persists Settings to a JSON sidecar file.
type SettingsStore struct {
	mu       sync.RWMutex
	path     string
	settings *Settings
}

// NewSettingsStore loads settings from path, writing defaults when the
// file does not exist yet.
func NewSettingsStore(path string) (*SettingsStore, error) {
	st := &SettingsStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		st.settings = DefaultSettings()
		if err := st.saveLocked(); err != nil {
			return nil, err
		}
		logger.Info("Default settings created and saved")
		return st, nil
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt settings file %s: %w", path, err)
	}
	st.settings = &s
	logger.Info("Settings loaded successfully")
	return st, nil
}

// Get returns a copy of the current settings.
func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return *st.settings
}

// Update replaces the settings and persists them.
func (st *SettingsStore) Update(s Settings) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev := st.settings
	st.settings = &s
	if err := st.saveLocked(); err != nil {
		st.settings = prev
		return err
	}
	return nil
}

func (st *SettingsStore) saveLocked() error {
	data, err := json.MarshalIndent(st.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
