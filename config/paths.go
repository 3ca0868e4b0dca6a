package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "mychat"

// homeDir is $HOME, or %USERPROFILE% on Windows.
func homeDir() string {
	if runtime.GOOS == "windows" {
		if home := os.Getenv("USERPROFILE"); home != "" {
			return home
		}
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}

// GetConfigDir returns ~/.config/mychat on every platform.
func GetConfigDir() string {
	return filepath.Join(homeDir(), ".config", appName)
}

// GetSettingsFilePath returns the path to settings.toml.
func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// GetDefaultDataDir returns ~/.local/share/mychat, or %LOCALAPPDATA%\mychat
// on Windows.
func GetDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			local = filepath.Join(homeDir(), "AppData", "Local")
		}
		return filepath.Join(local, appName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName)
}

// DatabasePath returns the conversation database inside dataDir.
func DatabasePath(dataDir string) string {
	return filepath.Join(dataDir, "conversations.db")
}

// GetExportDir returns the default directory for exported conversations.
func GetExportDir(dataDir string) string {
	return filepath.Join(dataDir, "exports")
}

// ExpandPath resolves a leading ~/ and $VARS.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		path = filepath.Join(homeDir(), rest)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates path with user-only access.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions creates dataDir or tightens it to 0700.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		return EnsureDir(dataDir)
	}
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}
