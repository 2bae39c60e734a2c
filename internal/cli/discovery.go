package cli

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/napbridge/napmsg-go/internal/config"
	"github.com/napbridge/napmsg-go/internal/errors"
)

// Config holds configuration for executable discovery.
type Config struct {
	// ExecPath is an explicit executable path that skips PATH search.
	// If empty, discovery will search PATH and common install locations.
	ExecPath string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the nap-msg executable.
type Discoverer interface {
	// Discover locates the nap-msg executable.
	// Returns the path to the executable or an ExecNotFoundError.
	Discover() (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new executable discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the nap-msg executable.
func (d *discoverer) Discover() (string, error) {
	d.log.Debug("Discovering backend executable")

	execPath, err := d.findExec()
	if err != nil {
		d.log.Error("Failed to find backend executable", "error", err)

		return "", err
	}

	d.log.Debug("Found backend executable", "exec_path", execPath)

	return execPath, nil
}

// findExec locates the nap-msg executable.
//
// pipx installs land in ~/.local/bin, which is why it is checked first among
// the common locations.
func (d *discoverer) findExec() (string, error) {
	// If explicit path provided, use it and only it
	if d.cfg.ExecPath != "" {
		d.log.Debug("Using explicit executable path", "exec_path", d.cfg.ExecPath)

		if _, err := os.Stat(d.cfg.ExecPath); err == nil {
			return d.cfg.ExecPath, nil
		}

		d.log.Debug("Explicit executable path not found", "exec_path", d.cfg.ExecPath)

		return "", &errors.ExecNotFoundError{SearchedPaths: []string{d.cfg.ExecPath}}
	}

	searchedPaths := make([]string, 0, 4)

	// Search in PATH
	d.log.Debug("Searching for backend executable in PATH", "name", config.DefaultExecName)

	if path, err := exec.LookPath(config.DefaultExecName); err == nil {
		d.log.Debug("Found backend executable in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	// Check common locations
	var commonPaths []string

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", config.DefaultExecName))
	}

	commonPaths = append(commonPaths,
		"/usr/local/bin/"+config.DefaultExecName,
		"/usr/bin/"+config.DefaultExecName,
	)

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)
		d.log.Debug("Checking common path", "path", path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found backend executable at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Backend executable not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.ExecNotFoundError{SearchedPaths: searchedPaths}
}
