// Package ioutils provides file system utilities for factorio-mod-downloader.
//
// This package contains functions for:
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Existence checks for downloaded artifacts
//   - Atomic file writes for state files
//
// # File Operations
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/mods")
//
//	// Replace a state file without leaving a torn write behind
//	err := ioutils.WriteFileAtomic("/path/to/registry.json", data, 0644)
//
// # Filename Sanitization
//
// Use SanitizeFileName to remove invalid characters from filenames:
//
//	safe := ioutils.SanitizeFileName("mod:name_1.0.0.zip") // Returns "mod_name_1.0.0.zip"
package ioutils
