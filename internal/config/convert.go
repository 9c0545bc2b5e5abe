package config

import (
	"path/filepath"

	"github.com/danmuck/heimdallr-client/internal/lock"
	"github.com/danmuck/heimdallr-client/internal/locator"
	"github.com/danmuck/heimdallr-client/internal/registry"
	"github.com/danmuck/heimdallr-client/internal/tools"
)

func (c Client) RegistryDir() string {
	return filepath.Join(c.Paths.ConfigDir, registry.DirName)
}

func (c Client) WaitOptions() registry.WaitOptions {
	return registry.WaitOptions{Timeout: c.PollTimeout, Interval: c.PollInterval}
}

func (c Client) LockOptions() lock.Options {
	opts := lock.DefaultOptions(c.Paths.ConfigDir)
	opts.Wait = c.LockWait
	opts.Interval = c.LockInterval
	return opts
}

// LocatorOptions selects the hasher: the configured command when present,
// otherwise md5 of the file.
func (c Client) LocatorOptions(runner tools.CommandRunner) locator.Options {
	opts := locator.Options{
		UserDir:     c.Paths.UserDir,
		SearchRoots: c.Settings.IDBPaths,
	}
	if len(c.Settings.HashCommand) > 0 {
		opts.Hasher = locator.CommandHasher{Command: c.Settings.HashCommand, Runner: runner}
	}
	return opts
}
