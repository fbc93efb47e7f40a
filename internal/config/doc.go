// Package config provides configuration management for factorio-mod-downloader.
//
// This package handles:
//   - Loading and saving settings from YAML files
//   - Environment variable overrides (FMD_* variables)
//   - Default configuration values
//   - Validation of loaded values
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to the Factorio mods directory
//	// Required dependencies only, 3 attempts per artifact
//	// Resume of partial downloads enabled
//
// # Loading from File
//
//	settings, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// Every field can be overridden from the environment, for example
// FMD_OUTPUT_DIR=/srv/factorio/mods or FMD_MAX_RETRIES=5.
//
// # Saving Settings
//
//	settings.OutputDir = "/custom/mods"
//	err := settings.Save(config.DefaultPath())
package config
