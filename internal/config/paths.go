package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "HOSTFOLD_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "hostfold.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "hostfold"
)

// FindConfigPath returns the first existing config file, checking
// $HOSTFOLD_CONFIG, then ./hostfold.yaml, then the XDG and system
// locations. Empty string means no config file was found.
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" && fileExists(path) {
		return path
	}

	if fileExists(ConfigFileName) {
		abs, err := filepath.Abs(ConfigFileName)
		if err != nil {
			return ConfigFileName
		}
		return abs
	}

	var candidates []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	candidates = append(candidates, filepath.Join("/etc", ConfigDirName, "config.yaml"))

	for _, path := range candidates {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
