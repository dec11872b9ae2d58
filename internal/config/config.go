package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// PhysicsConfig holds the tunable coefficients of the transfer model.
type PhysicsConfig struct {
	Probe                  domain.PropulsionParams `json:"probe"`
	MassDriver             domain.PropulsionParams `json:"mass_driver"`
	ProbeDryMassKg         float64                 `json:"probe_dry_mass_kg"`
	ExhaustVelocityKmS     float64                 `json:"exhaust_velocity_km_s"`
	MassDriverSpeedRefKmS  float64                 `json:"mass_driver_speed_ref_km_s"`
	SpendExcessForSpeed    bool                    `json:"spend_excess_for_speed"`
	MinTransferDays        float64                 `json:"min_transfer_days"`
	MaxInFlightBatches     int                     `json:"max_in_flight_batches"`
	InterstellarSpeedC     float64                 `json:"interstellar_speed_c"`
	ZoneMassPerSolarMassKg float64                 `json:"zone_mass_per_solar_mass_kg"`
	AsteroidBeltMultiplier float64                 `json:"asteroid_belt_multiplier"`
	DysonMassPerLumKg      float64                 `json:"dyson_mass_per_luminosity_kg"`
	DefaultZoneCount       int                     `json:"default_zone_count"`
	ZoneCountByClass       map[string]int          `json:"zone_count_by_class"`
	UnlockThreshold        float64                 `json:"unlock_threshold"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath             string        `json:"db_path"`
	CatalogPath        string        `json:"catalog_path"`
	ListenAddr         string        `json:"listen_addr"`
	TickIntervalMs     int           `json:"tick_interval_ms"`
	DaysPerTick        float64       `json:"days_per_tick"`
	SnapshotEveryTicks int           `json:"snapshot_every_ticks"`
	SnapshotKeep       int           `json:"snapshot_keep"`
	RateLimitPerSecond float64       `json:"rate_limit_per_second"`
	RateLimitBurst     int           `json:"rate_limit_burst"`
	Physics            PhysicsConfig `json:"physics"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no DB path.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9810"
	}
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = 1000
	}
	if c.DaysPerTick == 0 {
		c.DaysPerTick = 1
	}
	if c.SnapshotEveryTicks == 0 {
		c.SnapshotEveryTicks = 60
	}
	if c.SnapshotKeep == 0 {
		c.SnapshotKeep = 10
	}
	if c.RateLimitPerSecond == 0 {
		c.RateLimitPerSecond = 10
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 20
	}
	c.Physics.applyDefaults()
}

func (p *PhysicsConfig) applyDefaults() {
	if p.Probe.BaseKmS == 0 {
		p.Probe.BaseKmS = 7.5
	}
	if p.Probe.Weights == nil {
		p.Probe.Weights = map[string]float64{"propulsion": 0.15, "materials": 0.05}
	}
	if p.MassDriver.BaseKmS == 0 {
		p.MassDriver.BaseKmS = 3
	}
	if p.MassDriver.Weights == nil {
		p.MassDriver.Weights = map[string]float64{"electromagnetics": 0.2, "materials": 0.05}
	}
	if p.ProbeDryMassKg == 0 {
		p.ProbeDryMassKg = 100
	}
	if p.ExhaustVelocityKmS == 0 {
		p.ExhaustVelocityKmS = 4.4
	}
	if p.MassDriverSpeedRefKmS == 0 {
		p.MassDriverSpeedRefKmS = 20
	}
	if p.MinTransferDays == 0 {
		p.MinTransferDays = 0.01
	}
	if p.MaxInFlightBatches == 0 {
		p.MaxInFlightBatches = 64
	}
	if p.InterstellarSpeedC == 0 {
		p.InterstellarSpeedC = 0.05
	}
	if p.ZoneMassPerSolarMassKg == 0 {
		p.ZoneMassPerSolarMassKg = 1e24
	}
	if p.AsteroidBeltMultiplier == 0 {
		p.AsteroidBeltMultiplier = 5
	}
	if p.DysonMassPerLumKg == 0 {
		p.DysonMassPerLumKg = 2e22
	}
	if p.DefaultZoneCount == 0 {
		p.DefaultZoneCount = 8
	}
	if p.ZoneCountByClass == nil {
		p.ZoneCountByClass = map[string]int{
			"O": 4, "B": 5, "A": 6, "F": 7, "G": 8, "K": 8, "M": 6, "D": 3,
			"dust": 4,
		}
	}
	if p.UnlockThreshold == 0 {
		p.UnlockThreshold = 0.99
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.TickIntervalMs < 0 {
		problems = append(problems, "tick_interval_ms must not be negative")
	}
	if c.SnapshotKeep < 0 {
		problems = append(problems, "snapshot_keep must not be negative")
	}
	if c.DaysPerTick <= 0 {
		problems = append(problems, "days_per_tick must be positive")
	}
	if c.Physics.ExhaustVelocityKmS <= 0 {
		problems = append(problems, "physics.exhaust_velocity_km_s must be positive")
	}
	if c.Physics.MaxInFlightBatches < 1 {
		problems = append(problems, "physics.max_in_flight_batches must be at least 1")
	}
	if c.Physics.UnlockThreshold > 1 {
		problems = append(problems, "physics.unlock_threshold must be at most 1")
	}
	if c.Physics.InterstellarSpeedC <= 0 || c.Physics.InterstellarSpeedC >= 1 {
		problems = append(problems, "physics.interstellar_speed_c must be in (0, 1)")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
