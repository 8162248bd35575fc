// Package config provides configuration management for gsp-board.
//
// The config package handles:
//   - Loading match configurations from JSON and YAML files
//   - Schema checks before decoding, rule validation after
//   - Default configuration management
//   - Server settings from the environment
//
// Configuration Format:
//
// Match configurations live in the configs directory as name.json, name.yaml or
// name.yml. Each document is checked against an embedded JSON Schema, unset fields
// get their defaults and the result must pass engine.ValidateMatchConfig. A config
// defines the player count, the starting economy, the travel distance formula, the
// map event table and the status bar messages.
//
// Usage:
//
//	manager, err := config.NewManager("configs", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load specific configuration
//	matchConfig, err := manager.LoadConfig("scaled")
//
//	// Get default configuration (classic, else the first valid one, else built-in)
//	defaultConfig := manager.GetDefault()
//
//	// Server settings
//	settings, err := config.LoadSettings()
package config
