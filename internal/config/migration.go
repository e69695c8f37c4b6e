package config

import (
	"fmt"
	"strings"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Changes     []string
	Warnings    []string
}

// MigrateConfig upgrades cfg in place to the current schema version.
func MigrateConfig(cfg *Config) (*MigrationResult, error) {
	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   Version,
	}

	for cfg.Version < Version {
		changes, warnings, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// applyMigration applies a single version upgrade.
func applyMigration(cfg *Config) (changes []string, warnings []string, err error) {
	switch cfg.Version {
	case 1:
		changes, warnings = migrateV1ToV2(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown version %d", cfg.Version)
	}

	cfg.Version++
	return changes, warnings, nil
}

var legacyShortcuts = map[string]string{
	"SHORTCUT_123456789": Shortcut123456789,
	"SHORTCUT_ASDFGHJKL": ShortcutASDFGHJKL,
	"NO_SHORTCUT":        ShortcutNone,
}

// migrateV1ToV2 migrates from version 1 to version 2.
// V1 spelled enum values in upper case and had no trigger key list.
func migrateV1ToV2(cfg *Config) (changes []string, warnings []string) {
	if v, ok := legacyShortcuts[cfg.Conversion.SelectionShortcut]; ok {
		changes = append(changes, fmt.Sprintf("conversion.selection_shortcut %s -> %s",
			cfg.Conversion.SelectionShortcut, v))
		cfg.Conversion.SelectionShortcut = v
	}

	for i, key := range cfg.Conversion.AutoConversionKeys {
		lower := strings.ToLower(strings.TrimPrefix(key, "AUTO_CONVERSION_"))
		if lower != key {
			cfg.Conversion.AutoConversionKeys[i] = lower
			changes = append(changes, fmt.Sprintf("conversion.auto_conversion_keys %s -> %s", key, lower))
		}
	}

	space := strings.ToLower(cfg.Request.SpaceOnAlphanumeric)
	if space != cfg.Request.SpaceOnAlphanumeric {
		changes = append(changes, "request.space_on_alphanumeric lower-cased")
		cfg.Request.SpaceOnAlphanumeric = space
	}

	if cfg.Request.CandidatePageSize == 0 {
		cfg.Request.CandidatePageSize = defaultPageSize
		changes = append(changes, "set default request.candidate_page_size")
	}

	return changes, warnings
}
