package remo

import "time"

// Appliance type tag for air conditioners. Other appliance types exist on
// the API (TV, LIGHT, IR) but only AC carries structured settings.
const ApplianceTypeAC = "AC"

// Button value that turns an appliance off while its operation mode is kept
// recoverable on the settings record.
const ButtonPowerOff = "power-off"

// Sensor event keys used in Device.NewestEvents.
const (
	EventTemperature = "te"
	EventHumidity    = "hu"
	EventIlluminance = "il"
)

// SensorEvent is the most recent reading of one sensor on a device
type SensorEvent struct {
	Value     float64   `json:"val"`
	CreatedAt time.Time `json:"created_at"`
}

// Device represents a Remo hub device and its latest sensor readings
type Device struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	TemperatureOffset float64                `json:"temperature_offset"`
	HumidityOffset    float64                `json:"humidity_offset"`
	FirmwareVersion   string                 `json:"firmware_version"`
	MACAddress        string                 `json:"mac_address"`
	SerialNumber      string                 `json:"serial_number"`
	NewestEvents      map[string]SensorEvent `json:"newest_events"`
}

// ApplianceDevice is the device identity embedded in an appliance record
type ApplianceDevice struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
}

// AirconSettings is the mutable settings sub-record of an AC appliance.
// The API sends every field as a string, including the temperature.
type AirconSettings struct {
	Temperature string `json:"temp"`
	Mode        string `json:"mode"`
	Volume      string `json:"vol"`
	Direction   string `json:"dir"`
	Button      string `json:"button"`
}

// ModeRange lists the allowed values for one operation mode. Temperature
// entries arrive as strings and may contain empty placeholders.
type ModeRange struct {
	Temperatures []string `json:"temp"`
	Volumes      []string `json:"vol"`
	Directions   []string `json:"dir"`
}

// AirconRange is the capability descriptor of an AC: per-mode allowed
// values. Fixed at creation, never mutated.
type AirconRange struct {
	Modes        map[string]ModeRange `json:"modes"`
	FixedButtons []string             `json:"fixedButtons"`
}

// Aircon carries the AC-specific part of an appliance record
type Aircon struct {
	Range           AirconRange `json:"range"`
	TemperatureUnit string      `json:"tempUnit"`
}

// Appliance represents one appliance registered with the cloud
type Appliance struct {
	ID       string          `json:"id"`
	Device   ApplianceDevice `json:"device"`
	Nickname string          `json:"nickname"`
	Type     string          `json:"type"`
	Settings *AirconSettings `json:"settings"`
	Aircon   *Aircon         `json:"aircon"`
}

// State is one immutable-per-version snapshot of everything the account
// sees: appliances and devices keyed by id. It is replaced wholesale on
// every successful fetch; holders must re-look-up by id, never retain
// references across refreshes.
type State struct {
	Appliances map[string]*Appliance `json:"appliances"`
	Devices    map[string]*Device    `json:"devices"`
}

// Clone returns a copy of the snapshot with fresh maps. The records
// themselves are shared; callers replacing a record must copy it first.
func (s *State) Clone() *State {
	next := &State{
		Appliances: make(map[string]*Appliance, len(s.Appliances)),
		Devices:    make(map[string]*Device, len(s.Devices)),
	}
	for id, a := range s.Appliances {
		next.Appliances[id] = a
	}
	for id, d := range s.Devices {
		next.Devices[id] = d
	}
	return next
}
