package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Dir returns the microfactory configuration directory.
//
// Resolution:
//   - $MICROFACTORY_CONFIG_HOME if set (explicit override)
//   - $XDG_CONFIG_HOME/microfactory if set
//   - %AppData%/microfactory on Windows
//   - ~/.config/microfactory on macOS and Linux
func Dir() string {
	if dir := os.Getenv("MICROFACTORY_CONFIG_HOME"); dir != "" {
		return dir
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}
