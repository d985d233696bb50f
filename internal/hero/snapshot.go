package hero

import "time"

// Snapshot is one refresh cycle's fully normalized aggregate. Every field is
// always present; a failed or empty source yields its typed zero value so
// readers never branch on missing keys.
type Snapshot struct {
	Doses           []Dose                 `json:"doses"`
	Events          []Event                `json:"events"`
	PillsBySchedule []map[string]any       `json:"pills_by_schedule"`
	PillStats       map[string]any         `json:"pill_stats"`
	Stats           AdherenceStats         `json:"stats"`
	DeviceOnline    bool                   `json:"device_online"`
	DeviceConfig    map[string]any         `json:"device_config"`
	TakenSlots      []TakenSlot            `json:"taken_slots"`
	RemainingSupply map[int]SupplyEstimate `json:"remaining_supply"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Dose is one scheduled medication dose, flattened from whatever hierarchy
// the home-screen-doses endpoint returned.
type Dose struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Pills       []string  `json:"pills"`
}

// Event is one dispenser event, flattened from day-keyed buckets.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
	Pills     []string  `json:"pills"`
}

// TakenSlot is an occupied dispenser compartment, joined against the device
// configuration's pill list on slot number.
type TakenSlot struct {
	SlotIndex int    `json:"slot_index"`
	PillName  string `json:"pill_name,omitempty"`
	InStorage bool   `json:"in_storage"`
}

// PillConfig is one entry of the device configuration's pill list.
type PillConfig struct {
	Name      string
	InStorage bool
}

// AdherenceStats is the normalized overall adherence summary.
type AdherenceStats struct {
	AdherencePercent *float64 `json:"adherence_percent,omitempty"`
	TakenCount       int      `json:"taken_count"`
	MissedCount      int      `json:"missed_count"`
	TotalCount       int      `json:"total_count"`
	Period           string   `json:"period,omitempty"`
}

// SupplyEstimate is the remaining-supply record for one slot.
type SupplyEstimate struct {
	Days           int     `json:"days"`
	MinDays        int     `json:"min_days"`
	MaxDays        int     `json:"max_days"`
	PillsRemaining float64 `json:"pills_remaining"`
	PillsPerDay    float64 `json:"pills_per_day"`
	Error          string  `json:"error,omitempty"`
}

// emptySnapshot returns a snapshot with every field at its typed default.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		Doses:           []Dose{},
		Events:          []Event{},
		PillsBySchedule: []map[string]any{},
		PillStats:       map[string]any{},
		DeviceOnline:    true,
		DeviceConfig:    map[string]any{},
		TakenSlots:      []TakenSlot{},
		RemainingSupply: map[int]SupplyEstimate{},
	}
}
