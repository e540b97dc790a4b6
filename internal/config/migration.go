package config

import (
	"fmt"
	"os"
	"time"
)

// MigrationResult describes an upgrade of an older configuration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// migrations[v] upgrades a version v configuration to v+1 in place.
var migrations = map[int]func(cfg *Config, r *MigrationResult){
	1: migrateV1,
}

// MigrateConfig upgrades cfg to Version, recording what changed. It
// returns nil when cfg is already current. When configPath names an
// existing file, a copy is saved next to it first.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}
	r := &MigrationResult{FromVersion: cfg.Version, ToVersion: Version}

	if configPath != "" {
		backup, err := backupConfig(configPath)
		if err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("no backup written: %v", err))
		}
		r.Backup = backup
	}

	for cfg.Version < Version {
		step, ok := migrations[cfg.Version]
		if !ok {
			return r, fmt.Errorf("no migration from config version %d", cfg.Version)
		}
		step(cfg, r)
		cfg.Version++
	}
	return r, nil
}

// migrateV1 splits the single hooks switch and adds asset watching.
func migrateV1(cfg *Config, r *MigrationResult) {
	if on := cfg.Hooks.Enabled; on != nil {
		cfg.Hooks.KeyboardMouse, cfg.Hooks.Gamepad = *on, *on
		cfg.Hooks.Enabled = nil
		r.Changes = append(r.Changes, "split hooks.enabled into hooks.keyboard_mouse and hooks.gamepad")
	}
	if cfg.Watch.DebounceMs <= 0 {
		cfg.Watch.Enabled = true
		cfg.Watch.DebounceMs = 250
		r.Changes = append(r.Changes, "added asset watch configuration")
	}
	if cfg.Hooks.Pads <= 0 {
		cfg.Hooks.Pads = DefaultConfig().Hooks.Pads
		r.Warnings = append(r.Warnings, "hooks.pads was unset; polling every gamepad slot")
	}
}

// backupConfig copies configPath to a timestamped sibling. A missing file
// needs no backup.
func backupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.backup-%s", configPath, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		return "", err
	}
	return backup, nil
}

// MigrateFile upgrades the configuration file at path in place. The
// previous file is kept as a timestamped backup. A nil result means the
// file was already current.
func MigrateFile(path string) (*MigrationResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	r, err := MigrateConfig(cfg, path)
	if err != nil || r == nil {
		return r, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return r, fmt.Errorf("migrated config is invalid: %w", err)
	}
	return r, SaveConfig(cfg, path)
}
