package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "gsp-board://match-config.schema.json"

// extensions are tried in this order when a name has none
var extensions = []string{".json", ".yaml", ".yml"}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the compiled JSON Schema match configs are checked against
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return compiledSchema, schemaErr
}

// Manager handles match configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.MatchConfig
	configs       map[string]*engine.MatchConfig
	logger        *slog.Logger
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string, logger *slog.Logger) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.MatchConfig),
		logger:    logger,
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a configuration by name. The name may carry a .json, .yaml or .yml
// extension; without one the extensions are tried in that order.
func (m *Manager) LoadConfig(name string) (*engine.MatchConfig, error) {
	id := configID(name)

	m.mu.RLock()
	if cfg, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cfg, exists := m.configs[id]; exists {
		return cfg, nil
	}

	path, err := m.resolvePath(name)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	m.configs[id] = cfg
	m.logger.Debug("config loaded", "id", id, "path", path)
	return cfg, nil
}

func (m *Manager) resolvePath(name string) (string, error) {
	if ext := filepath.Ext(name); isConfigExt(ext) {
		path := filepath.Join(m.configDir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return "", ErrConfigNotFound
			}
			return "", fmt.Errorf("failed to stat config file: %w", err)
		}
		return path, nil
	}

	for _, ext := range extensions {
		path := filepath.Join(m.configDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

// LoadFile reads, schema-checks, defaults and validates one config file
func LoadFile(path string) (*engine.MatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes a config document. ext selects YAML (.yaml, .yml) or JSON (anything else).
func Parse(data []byte, ext string) (*engine.MatchConfig, error) {
	doc, err := decodeDocument(data, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	schema, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Round-trip through JSON so both formats share one decoding path
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Absent keys keep their defaults, explicit zeros stay zero
	cfg := engine.NewMatchConfig()
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	engine.FillDefaults(&cfg)
	if err := engine.ValidateMatchConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// decodeDocument returns the document as generic JSON values, the shape the schema validator expects
func decodeDocument(data []byte, ext string) (interface{}, error) {
	if isYAML(ext) {
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		asJSON, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		data = asJSON
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !isConfigExt(ext) {
			continue
		}

		id := configID(entry.Name())
		if seen[id] {
			continue
		}

		cfg, err := m.LoadConfig(entry.Name())
		if err != nil {
			m.logger.Warn("skipping invalid config", "file", entry.Name(), "error", err)
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:        entry.Name(),
			ConfigID:        id,
			Name:            cfg.Name,
			Description:     cfg.Description,
			NumPlayers:      cfg.NumPlayers,
			DistanceFormula: cfg.DistanceFormula,
			Format:          strings.TrimPrefix(ext, "."),
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.MatchConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	cfg, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = cfg
	return nil
}

// ReloadConfig drops a cached configuration and loads it again from disk
func (m *Manager) ReloadConfig(name string) error {
	m.mu.Lock()
	delete(m.configs, configID(name))
	m.mu.Unlock()

	_, err := m.LoadConfig(name)
	return err
}

// RefreshCache reloads all cached configurations from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.MatchConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// ValidateConfig checks a configuration without saving it
func (m *Manager) ValidateConfig(cfg *engine.MatchConfig) error {
	if err := engine.ValidateMatchConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// loadDefaultConfig picks classic, then the first valid config, then the built-in default
func (m *Manager) loadDefaultConfig() error {
	cfg, err := m.LoadConfig("classic")
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			m.setDefault(engine.DefaultMatchConfig())
			return nil
		}

		cfg, err = m.LoadConfig(configs[0].Filename)
		if err != nil {
			m.setDefault(engine.DefaultMatchConfig())
			return nil
		}
	}

	m.setDefault(cfg)
	return nil
}

func (m *Manager) setDefault(cfg *engine.MatchConfig) {
	m.mu.Lock()
	m.defaultConfig = cfg
	m.mu.Unlock()
}

// SaveConfig saves a configuration to disk. A .yaml or .yml name writes YAML, anything else JSON.
func (m *Manager) SaveConfig(name string, cfg *engine.MatchConfig) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: bad file name %q", ErrInvalidConfig, name)
	}
	if err := engine.ValidateMatchConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	filename := name
	if !isConfigExt(filepath.Ext(filename)) {
		filename = name + ".json"
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filepath.Ext(filename)) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[configID(filename)] = cfg
	m.mu.Unlock()

	m.logger.Info("config saved", "file", filename)
	return nil
}

func configID(name string) string {
	if ext := filepath.Ext(name); isConfigExt(ext) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// Extensions are matched without regard to case
func isConfigExt(ext string) bool {
	return strings.EqualFold(ext, ".json") || isYAML(ext)
}

func isYAML(ext string) bool {
	return strings.EqualFold(ext, ".yaml") || strings.EqualFold(ext, ".yml")
}
