// Package domain defines the core types for the Expanse simulation engine.
package domain

// ZoneKind classifies an orbital zone for generation and endowment.
type ZoneKind string

const (
	ZoneDyson          ZoneKind = "dyson"
	ZoneRocky          ZoneKind = "rocky"
	ZoneAsteroidBelt   ZoneKind = "asteroid_belt"
	ZoneGasGiant       ZoneKind = "gas_giant"
	ZoneIceGiant       ZoneKind = "ice_giant"
	ZoneTransNeptunian ZoneKind = "trans_neptunian"
)

// OrbitalZone is a static orbital distance band. Immutable after load.
type OrbitalZone struct {
	ID              string   `json:"id"`
	Name            string   `json:"name,omitempty"`
	Kind            ZoneKind `json:"kind,omitempty"`
	OrbitalRadiusAU float64  `json:"orbital_radius_au"`
	TotalMassKg     float64  `json:"total_mass_kg"`
	EscapeDeltaVKmS float64  `json:"escape_delta_v_km_s"`
	IsDysonZone     bool     `json:"is_dyson_zone"`
}

// ZoneRuntimeState is the mutable state of one zone in a colonized system.
type ZoneRuntimeState struct {
	MassRemainingKg       float64        `json:"mass_remaining_kg"`
	StoredMetalKg         float64        `json:"stored_metal_kg"`
	ProbeCount            float64        `json:"probe_count"`
	ProbeProductionPerDay float64        `json:"probe_production_per_day"`
	StructureCounts       map[string]int `json:"structure_counts"`
}

// Clone returns a deep copy.
func (z ZoneRuntimeState) Clone() ZoneRuntimeState {
	out := z
	out.StructureCounts = make(map[string]int, len(z.StructureCounts))
	for k, v := range z.StructureCounts {
		out.StructureCounts[k] = v
	}
	return out
}

// StructureMassDriver is the structure kind that launches payloads.
const StructureMassDriver = "mass_driver"

// ResourceKind is what a transfer carries.
type ResourceKind string

const (
	ResourceProbe ResourceKind = "probe"
	ResourceMetal ResourceKind = "metal"
)

// TransferMode distinguishes single shipments from continuous flows.
type TransferMode string

const (
	ModeOneTime    TransferMode = "one_time"
	ModeContinuous TransferMode = "continuous"
)

// TransferOrder is a shipment intent. Probe flows draw a percentage of the
// origin's production rate; metal flows draw a percentage of stored metal.
type TransferOrder struct {
	SystemID                string       `json:"system_id,omitempty"`
	FromZoneID              string       `json:"from_zone_id"`
	ToZoneID                string       `json:"to_zone_id"`
	ResourceKind            ResourceKind `json:"resource_kind"`
	Mode                    TransferMode `json:"mode"`
	Quantity                float64      `json:"quantity,omitempty"`
	RatePercentOfProduction float64      `json:"rate_percent_of_production,omitempty"`
	RatePercentOfStored     float64      `json:"rate_percent_of_stored,omitempty"`
}

// TransferStatus is the lifecycle state of a TransferInstance.
type TransferStatus string

const (
	TransferTraveling TransferStatus = "traveling"
	TransferPaused    TransferStatus = "paused"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferCancelled
}

// Batch is one parcel in flight.
type Batch struct {
	DepartureDay float64 `json:"departure_day"`
	ArrivalDay   float64 `json:"arrival_day"`
	Quantity     float64 `json:"quantity"`
	FuelKg       float64 `json:"fuel_kg"`
}

// TransferInstance is the live record of a TransferOrder.
type TransferInstance struct {
	ID                string         `json:"id"`
	Order             TransferOrder  `json:"order"`
	Status            TransferStatus `json:"status"`
	DepartureDay      float64        `json:"departure_day"`
	ArrivalDay        float64        `json:"arrival_day,omitempty"`
	TransferDays      float64        `json:"transfer_days"`
	RequiredDeltaVKmS float64        `json:"required_delta_v_km_s"`
	ExcessDeltaVKmS   float64        `json:"excess_delta_v_km_s"`
	FuelKg            float64        `json:"fuel_kg"`
	DeliveredQuantity float64        `json:"delivered_quantity"`
	LastSpawnDay      float64        `json:"last_spawn_day"`
	Batches           []Batch        `json:"batches"`
}

// Clone returns a deep copy.
func (t TransferInstance) Clone() TransferInstance {
	out := t
	out.Batches = append([]Batch(nil), t.Batches...)
	return out
}

// SystemStatus is the colonization state of a star system.
type SystemStatus string

const (
	SystemUndiscovered SystemStatus = "undiscovered"
	SystemDiscovered   SystemStatus = "discovered"
	SystemColonized    SystemStatus = "colonized"
)

// DysonProgress tracks Dyson-sphere construction for one system.
type DysonProgress struct {
	MassKg            float64 `json:"mass_kg"`
	TargetMassKg      float64 `json:"target_mass_kg"`
	CompletionPercent float64 `json:"completion_percent"`
}

// Complete reports whether the target has been reached.
func (d DysonProgress) Complete() bool {
	return d.TargetMassKg > 0 && d.MassKg >= d.TargetMassKg
}

// Star is a static catalog entry for a star or dust cloud.
type Star struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	PositionLy      [3]float64 `json:"position_ly"`
	SpectralClass   string     `json:"spectral_class"`
	LuminositySolar float64    `json:"luminosity_solar"`
	MassSolar       float64    `json:"mass_solar"`
	IsDustCloud     bool       `json:"is_dust_cloud,omitempty"`
}

// StarSystemRecord is the colonization record of one star or dust cloud.
type StarSystemRecord struct {
	Star
	Status        SystemStatus  `json:"status"`
	PendingProbes float64       `json:"pending_probes"`
	Generated     bool          `json:"generated"`
	Dyson         DysonProgress `json:"dyson"`
}

// InterstellarStatus is the lifecycle state of an InterstellarTransfer.
type InterstellarStatus string

const (
	InterstellarTraveling InterstellarStatus = "traveling"
	InterstellarCompleted InterstellarStatus = "completed"
)

// InterstellarTransfer moves probes between star systems.
type InterstellarTransfer struct {
	ID           string             `json:"id"`
	FromSystemID string             `json:"from_system_id"`
	ToSystemID   string             `json:"to_system_id"`
	ProbeCount   float64            `json:"probe_count"`
	DepartureDay float64            `json:"departure_day"`
	ArrivalDay   float64            `json:"arrival_day"`
	Status       InterstellarStatus `json:"status"`
}

// GalaxyAggregate is derived from the system records; never authoritative.
type GalaxyAggregate struct {
	ColonizedSystems     int                `json:"colonized_systems"`
	CompleteDysonSystems int                `json:"complete_dyson_systems"`
	TotalProbes          float64            `json:"total_probes"`
	TotalDysonMassKg     float64            `json:"total_dyson_mass_kg"`
	DysonMassByClass     map[string]float64 `json:"dyson_mass_by_class"`
	CompleteDysonByClass map[string]int     `json:"complete_dyson_by_class"`
}

// Skills maps a research skill to its level. Baseline is 1.
type Skills map[string]float64

// PropulsionParams configures a capacity figure: base plus starting bonus,
// times a linear upgrade factor over weighted skills.
type PropulsionParams struct {
	BaseKmS          float64            `json:"base_km_s"`
	StartingBonusKmS float64            `json:"starting_bonus_km_s"`
	Weights          map[string]float64 `json:"weights"`
}

// SimEvent is one entry in the persisted simulation event log.
type SimEvent struct {
	ID          int64   `json:"id"`
	SeqNo       int64   `json:"seq_no"`
	SimDay      float64 `json:"sim_day"`
	EventType   string  `json:"event_type"`
	SubjectID   string  `json:"subject_id"`
	PayloadJSON string  `json:"payload_json"`
	CreatedAt   int64   `json:"created_at"`
}

// SnapshotRecord is a persisted, encoded simulation snapshot.
type SnapshotRecord struct {
	ID        int64
	SimDay    float64
	Version   int
	Blob      []byte
	Checksum  string
	CreatedAt int64
}
