// Package config stores named connection profiles.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"comterm/pkg/serial"
	"comterm/pkg/terminal"
)

const (
	configFile  = "configs.json"
	macroFile   = "macros.cfg"
	appDirName  = "comterm"
	storageVers = "1.0"
)

// DisplaySettings controls how received data is shown.
type DisplaySettings struct {
	Columns                int  `json:"columns"`
	Rows                   int  `json:"rows"`
	AutoWrap               bool `json:"auto_wrap"`
	NewlineMode            bool `json:"newline_mode"`
	LocalEcho              bool `json:"local_echo"`
	DisplayAllHex          bool `json:"display_all_hex"`
	DisplayNonPrintableHex bool `json:"display_non_printable_hex"`
}

// DefaultDisplaySettings returns an 80x25 wrapping grid with no hex display.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		Columns:  terminal.DefaultColumns,
		Rows:     terminal.DefaultRows,
		AutoWrap: true,
	}
}

// Validate checks the grid size.
func (d DisplaySettings) Validate() error {
	if d.Columns < 1 || d.Columns > 1000 {
		return fmt.Errorf("columns must be between 1 and 1000, got: %d", d.Columns)
	}
	if d.Rows < 1 || d.Rows > 1000 {
		return fmt.Errorf("rows must be between 1 and 1000, got: %d", d.Rows)
	}
	return nil
}

// Profile is everything needed to start a session.
type Profile struct {
	Port    string            `json:"port"`
	Line    serial.LineConfig `json:"line"`
	Display DisplaySettings   `json:"display"`
}

// DefaultProfile returns the default line and display settings with no port.
func DefaultProfile() Profile {
	return Profile{
		Line:    serial.DefaultLineConfig(),
		Display: DefaultDisplaySettings(),
	}
}

// Validate checks the port name, line settings and display settings.
func (p Profile) Validate() error {
	if p.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if err := p.Line.Validate(); err != nil {
		return fmt.Errorf("invalid line settings: %w", err)
	}
	if err := p.Display.Validate(); err != nil {
		return fmt.Errorf("invalid display settings: %w", err)
	}
	return nil
}

// ConfigInfo contains metadata about a saved profile
type ConfigInfo struct {
	Name        string    `json:"name"`
	Profile     Profile   `json:"profile"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
	Description string    `json:"description,omitempty"`
}

// Validate checks if the configuration info is valid
func (c ConfigInfo) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("configuration name cannot be empty")
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp cannot be zero")
	}
	return nil
}

// ConfigStorage represents the storage format for configurations
type ConfigStorage struct {
	Configs map[string]ConfigInfo `json:"configs"`
	Version string                `json:"version"`
}

// DefaultConfigDir returns <user config dir>/comterm.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName), nil
}

// FileConfigManager keeps profiles in a JSON file
type FileConfigManager struct {
	configDir  string
	configFile string
}

// NewFileConfigManager creates a new file-based configuration manager
func NewFileConfigManager(configDir string) *FileConfigManager {
	return &FileConfigManager{
		configDir:  configDir,
		configFile: configFile,
	}
}

// Dir returns the configuration directory.
func (fcm *FileConfigManager) Dir() string {
	return fcm.configDir
}

// MacroPath returns where the macro bank is kept.
func (fcm *FileConfigManager) MacroPath() string {
	return filepath.Join(fcm.configDir, macroFile)
}

// GetConfigPath returns the full path to the configuration file
func (fcm *FileConfigManager) GetConfigPath() string {
	return filepath.Join(fcm.configDir, fcm.configFile)
}

// Initialize creates the configuration directory and initializes storage if needed
func (fcm *FileConfigManager) Initialize() error {
	if err := os.MkdirAll(fcm.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(fcm.GetConfigPath()); os.IsNotExist(err) {
		storage := ConfigStorage{Configs: make(map[string]ConfigInfo), Version: storageVers}
		if err := fcm.saveStorage(storage); err != nil {
			return fmt.Errorf("failed to initialize config file: %w", err)
		}
	}
	return nil
}

// SaveConfig saves a profile under name, keeping the creation time and
// description of an existing entry.
func (fcm *FileConfigManager) SaveConfig(name string, profile Profile) error {
	if name == "" {
		return fmt.Errorf("configuration name cannot be empty")
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := fcm.Initialize(); err != nil {
		return err
	}

	storage, err := fcm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load existing configurations: %w", err)
	}

	now := time.Now()
	info := ConfigInfo{
		Name:       name,
		Profile:    profile,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if existing, exists := storage.Configs[name]; exists {
		info.CreatedAt = existing.CreatedAt
		info.Description = existing.Description
	}
	storage.Configs[name] = info

	if err := fcm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// LoadConfig loads a profile by name and records the access time.
func (fcm *FileConfigManager) LoadConfig(name string) (Profile, error) {
	if name == "" {
		return Profile{}, fmt.Errorf("configuration name cannot be empty")
	}

	storage, err := fcm.loadStorage()
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load configurations: %w", err)
	}

	info, exists := storage.Configs[name]
	if !exists {
		return Profile{}, fmt.Errorf("configuration '%s' not found", name)
	}

	info.LastUsedAt = time.Now()
	storage.Configs[name] = info
	// Last-used is informational.
	_ = fcm.saveStorage(storage)

	return info.Profile, nil
}

// GetConfig returns the stored entry without touching its access time.
func (fcm *FileConfigManager) GetConfig(name string) (ConfigInfo, error) {
	storage, err := fcm.loadStorage()
	if err != nil {
		return ConfigInfo{}, fmt.Errorf("failed to load configurations: %w", err)
	}
	info, exists := storage.Configs[name]
	if !exists {
		return ConfigInfo{}, fmt.Errorf("configuration '%s' not found", name)
	}
	return info, nil
}

// ListConfigs returns all saved profiles sorted by name
func (fcm *FileConfigManager) ListConfigs() ([]ConfigInfo, error) {
	return fcm.SearchConfigs("")
}

// SearchConfigs returns the profiles whose name or description contains
// query, sorted by name
func (fcm *FileConfigManager) SearchConfigs(query string) ([]ConfigInfo, error) {
	storage, err := fcm.loadStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to load configurations: %w", err)
	}

	query = strings.ToLower(query)
	results := make([]ConfigInfo, 0, len(storage.Configs))
	for _, info := range storage.Configs {
		if query == "" ||
			strings.Contains(strings.ToLower(info.Name), query) ||
			strings.Contains(strings.ToLower(info.Description), query) {
			results = append(results, info)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// DeleteConfig deletes a configuration by name
func (fcm *FileConfigManager) DeleteConfig(name string) error {
	if name == "" {
		return fmt.Errorf("configuration name cannot be empty")
	}

	storage, err := fcm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load configurations: %w", err)
	}
	if _, exists := storage.Configs[name]; !exists {
		return fmt.Errorf("configuration '%s' not found", name)
	}

	delete(storage.Configs, name)
	if err := fcm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save configurations after deletion: %w", err)
	}
	return nil
}

// ConfigExists checks if a configuration with the given name exists
func (fcm *FileConfigManager) ConfigExists(name string) bool {
	if name == "" {
		return false
	}
	storage, err := fcm.loadStorage()
	if err != nil {
		return false
	}
	_, exists := storage.Configs[name]
	return exists
}

// SetConfigDescription sets the description for a configuration
func (fcm *FileConfigManager) SetConfigDescription(name, description string) error {
	if name == "" {
		return fmt.Errorf("configuration name cannot be empty")
	}

	storage, err := fcm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load configurations: %w", err)
	}
	info, exists := storage.Configs[name]
	if !exists {
		return fmt.Errorf("configuration '%s' not found", name)
	}

	info.Description = description
	storage.Configs[name] = info
	if err := fcm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save configuration description: %w", err)
	}
	return nil
}

// ExportConfig exports a configuration to a JSON file
func (fcm *FileConfigManager) ExportConfig(name, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	info, err := fcm.GetConfig(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// ImportConfig imports a configuration from a JSON file and returns its name
func (fcm *FileConfigManager) ImportConfig(filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read configuration file: %w", err)
	}

	var info ConfigInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("failed to parse configuration file: %w", err)
	}
	if err := info.Validate(); err != nil {
		return "", fmt.Errorf("invalid configuration in file: %w", err)
	}

	if err := fcm.SaveConfig(info.Name, info.Profile); err != nil {
		return "", err
	}
	if info.Description != "" {
		if err := fcm.SetConfigDescription(info.Name, info.Description); err != nil {
			return "", err
		}
	}
	return info.Name, nil
}

// loadStorage loads the configuration storage from file
func (fcm *FileConfigManager) loadStorage() (ConfigStorage, error) {
	data, err := os.ReadFile(fcm.GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ConfigStorage{Configs: make(map[string]ConfigInfo), Version: storageVers}, nil
		}
		return ConfigStorage{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var storage ConfigStorage
	if err := json.Unmarshal(data, &storage); err != nil {
		return ConfigStorage{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if storage.Configs == nil {
		storage.Configs = make(map[string]ConfigInfo)
	}
	return storage, nil
}

// saveStorage writes the storage to a temporary file and renames it into
// place
func (fcm *FileConfigManager) saveStorage(storage ConfigStorage) error {
	configPath := fcm.GetConfigPath()

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config data: %w", err)
	}

	tempPath := configPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary config file: %w", err)
	}
	return nil
}
