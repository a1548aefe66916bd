// Package paths resolves configuration and data directory locations and maps
// logical store file names to absolute paths inside the data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/weightlog/pkg/types"
)

const appDirName = "weightlog"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "WEIGHTLOG_CONFIG_DIR"
	EnvDataDir   = "WEIGHTLOG_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/weightlog (fallback ~/.config/weightlog)
// macOS:   ~/Library/Application Support/weightlog
// Windows: %APPDATA%/weightlog
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appDirName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDirName), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/weightlog (fallback ~/.local/share/weightlog)
// macOS:   ~/Library/Application Support/weightlog
// Windows: %APPDATA%/weightlog
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDirName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > WEIGHTLOG_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > WEIGHTLOG_DATA_DIR env > DefaultDataDir().
// A platform that cannot supply a default yields ErrDirectoryUnavailable.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	dir, err := DefaultDataDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	return dir, nil
}

// Resolver maps a logical file name to an absolute path inside a private,
// writable directory.
type Resolver interface {
	Resolve(name string) (string, error)
}

// DirResolver resolves names inside Dir, creating Dir on fs when missing.
// The directory is not cached; every call checks it again.
type DirResolver struct {
	Dir string
	Fs  afero.Fs
}

// NewDirResolver returns a resolver rooted at dir on fs. A nil fs means the
// operating system filesystem.
func NewDirResolver(dir string, fs afero.Fs) *DirResolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DirResolver{Dir: dir, Fs: fs}
}

// Resolve returns Dir/name. It fails with ErrDirectoryUnavailable when Dir is
// empty, relative, not a directory, or cannot be created.
func (r *DirResolver) Resolve(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if r.Dir == "" {
		return "", fmt.Errorf("%w: no directory configured", types.ErrDirectoryUnavailable)
	}
	if !filepath.IsAbs(r.Dir) {
		return "", fmt.Errorf("%w: %s is not absolute", types.ErrDirectoryUnavailable, r.Dir)
	}
	if err := r.Fs.MkdirAll(r.Dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	info, err := r.Fs.Stat(r.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", types.ErrDirectoryUnavailable, r.Dir)
	}
	return filepath.Join(r.Dir, name), nil
}
