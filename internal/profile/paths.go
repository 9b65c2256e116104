package profile

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "CLINICCHAT_HOME"

// BaseDir returns $CLINICCHAT_HOME or ~/.clinicchat.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".clinicchat")
}

// Dir returns the identity-specific directory.
func Dir(id string) string {
	return filepath.Join(BaseDir(), "identities", id)
}

// LockPath returns the lock file path for an identity.
func LockPath(id string) string {
	return filepath.Join(Dir(id), "LOCK")
}

// LogDir returns the log directory for an identity.
func LogDir(id string) string {
	return filepath.Join(Dir(id), "logs")
}

// LogPath returns the client log file path.
func LogPath(id string) string {
	return filepath.Join(LogDir(id), "clinicchat.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the identity directory tree with proper permissions.
func EnsureDir(id string) error {
	for _, d := range []string{Dir(id), LogDir(id)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
