package snapshot

import (
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// skillAliases maps legacy skill keys to their canonical name.
var skillAliases = map[string]string{
	"propulsion_skill":  "propulsion",
	"probe_propulsion":  "propulsion",
	"massdriver":        "electromagnetics",
	"mass_driver_skill": "electromagnetics",
}

// migrations[v] upgrades a raw snapshot from version v to v+1.
var migrations = map[int]func(map[string]any){
	1: migrateV1,
}

// Migrate upgrades a raw decoded snapshot in place to CurrentVersion.
// A missing version is treated as 1.
func Migrate(raw map[string]any) error {
	version := 1
	if v, ok := raw["version"].(float64); ok && v > 0 {
		version = int(v)
	}
	if version > CurrentVersion {
		return domain.NewEngineError(domain.ErrSnapshotVersion.Code,
			fmt.Sprintf("%s: %d (max %d)", domain.ErrSnapshotVersion.Message, version, CurrentVersion))
	}
	for ; version < CurrentVersion; version++ {
		step, ok := migrations[version]
		if !ok {
			return domain.NewEngineError(domain.ErrSnapshotVersion.Code,
				fmt.Sprintf("%s: no migration from %d", domain.ErrSnapshotVersion.Message, version))
		}
		step(raw)
	}
	raw["version"] = CurrentVersion
	return nil
}

// migrateV1 collapses aliased skill keys and splits the single ratePercent
// field of continuous orders into the per-resource fields.
func migrateV1(raw map[string]any) {
	if skills, ok := raw["skills"].(map[string]any); ok {
		for alias, canonical := range skillAliases {
			v, ok := skills[alias]
			if !ok {
				continue
			}
			if _, taken := skills[canonical]; !taken {
				skills[canonical] = v
			}
			delete(skills, alias)
		}
	}

	systems, ok := raw["systemStates"].(map[string]any)
	if !ok {
		return
	}
	for _, b := range systems {
		bundle, ok := b.(map[string]any)
		if !ok {
			continue
		}
		transfers, ok := bundle["transfers"].([]any)
		if !ok {
			continue
		}
		for _, t := range transfers {
			inst, ok := t.(map[string]any)
			if !ok {
				continue
			}
			order, ok := inst["order"].(map[string]any)
			if !ok {
				continue
			}
			pct, ok := order["ratePercent"]
			if !ok {
				continue
			}
			delete(order, "ratePercent")
			if order["resource_kind"] == string(domain.ResourceMetal) {
				order["rate_percent_of_stored"] = pct
			} else {
				order["rate_percent_of_production"] = pct
			}
		}
	}
}
