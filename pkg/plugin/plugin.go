// Package plugin locates the supergraph composition binary for a federation version.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/jensneuse/abstractlogger"
	"github.com/mitchellh/go-homedir"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

const binaryPrefix = "supergraph-v"

var ErrPluginNotInstalled = errors.New("supergraph plugin not installed")

// DefaultDir is ~/.supergraph/plugins, or a relative .supergraph/plugins when there is no home directory.
func DefaultDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".supergraph", "plugins")
	}
	return filepath.Join(home, ".supergraph", "plugins")
}

// Binary is an installed composition binary.
type Binary struct {
	Path string
	// Version is nil when an override path of unknown version is used.
	Version *semver.Version
}

// Installer makes a composition binary matching the federation version available.
type Installer interface {
	Install(ctx context.Context, version supergraphconfig.FederationVersion, overridePath string) (Binary, error)
}

// LocalInstaller looks up binaries named supergraph-v<version> in a plugin directory.
// It never downloads anything.
type LocalInstaller struct {
	dir    string
	logger abstractlogger.Logger
}

// NewLocalInstaller looks up binaries in dir, a leading ~ is expanded to the home directory.
func NewLocalInstaller(dir string, logger abstractlogger.Logger) *LocalInstaller {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	if expanded, err := homedir.Expand(dir); err == nil {
		dir = expanded
	}
	return &LocalInstaller{dir: dir, logger: logger}
}

func (l *LocalInstaller) Install(ctx context.Context, version supergraphconfig.FederationVersion, overridePath string) (Binary, error) {
	if err := ctx.Err(); err != nil {
		return Binary{}, err
	}
	if overridePath != "" {
		return l.override(version, overridePath)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: read plugin dir: %w", ErrPluginNotInstalled, err)
	}

	constraint := version.Constraint()
	var best Binary
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		candidate, ok := parseBinaryName(entry.Name())
		if !ok || !constraint.Check(candidate) {
			continue
		}
		if best.Version == nil || candidate.GreaterThan(best.Version) {
			best = Binary{Path: filepath.Join(l.dir, entry.Name()), Version: candidate}
		}
	}
	if best.Version == nil {
		return Binary{}, fmt.Errorf("%w: no %s binary matching federation version %s in %s", ErrPluginNotInstalled, binaryPrefix+"*", version, l.dir)
	}

	l.logger.Debug("plugin.Install",
		abstractlogger.String("federationVersion", version.String()),
		abstractlogger.String("path", best.Path),
	)
	return best, nil
}

func (l *LocalInstaller) override(version supergraphconfig.FederationVersion, path string) (Binary, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %w", ErrPluginNotInstalled, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %w", ErrPluginNotInstalled, err)
	}
	if info.IsDir() {
		return Binary{}, fmt.Errorf("%w: %s is a directory", ErrPluginNotInstalled, path)
	}
	binary := Binary{Path: path, Version: version.Exact()}
	if v, ok := parseBinaryName(filepath.Base(path)); ok {
		binary.Version = v
	}
	l.logger.Debug("plugin.Install",
		abstractlogger.String("federationVersion", version.String()),
		abstractlogger.String("override", path),
	)
	return binary, nil
}

func parseBinaryName(name string) (*semver.Version, bool) {
	name = strings.TrimSuffix(name, ".exe")
	if !strings.HasPrefix(name, binaryPrefix) {
		return nil, false
	}
	v, err := semver.StrictNewVersion(strings.TrimPrefix(name, binaryPrefix))
	if err != nil {
		return nil, false
	}
	return v, true
}
