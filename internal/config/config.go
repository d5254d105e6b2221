// Package config loads melo settings from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "melo"

type Config struct {
	LibraryPath  string `koanf:"library_path"`  // root directory the library lives under
	DatabasePath string `koanf:"database_path"` // sqlite file; defaults to the XDG data dir
	LogLevel     string `koanf:"log_level"`     // "debug", "info", "warn", or "error"

	Move MoveConfig `koanf:"move"`
}

// MoveConfig holds the path templates the move engine renders item
// destinations from.
type MoveConfig struct {
	AlbumPath    string `koanf:"album_path"`
	TrackPath    string `koanf:"track_path"`
	ExtraPath    string `koanf:"extra_path"`
	AsciifyPaths bool   `koanf:"asciify_paths"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Config files in order of priority, last wins.
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	cfg := &Config{LogLevel: "info"}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.LibraryPath = expandPath(cfg.LibraryPath)
	cfg.DatabasePath = expandPath(cfg.DatabasePath)

	if cfg.LibraryPath == "" {
		cfg.LibraryPath = xdg.UserDirs.Music
	}
	if cfg.DatabasePath == "" {
		path, err := xdg.DataFile(filepath.Join(appName, "library.db"))
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		cfg.DatabasePath = path
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/melo/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
