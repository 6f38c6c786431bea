package climate

// HVACMode is the generic climate mode exposed to consumers of the bridge
type HVACMode string

// Generic modes. Off is rendered from the power button, not from the
// vendor operation mode.
const (
	HVACAuto    HVACMode = "auto"
	HVACCool    HVACMode = "cool"
	HVACDry     HVACMode = "dry"
	HVACFanOnly HVACMode = "fan_only"
	HVACHeat    HVACMode = "heat"
	HVACOff     HVACMode = "off"
)

var modeToVendor = map[HVACMode]string{
	HVACAuto:    "auto",
	HVACFanOnly: "blow",
	HVACCool:    "cool",
	HVACDry:     "dry",
	HVACHeat:    "warm",
	HVACOff:     "power-off",
}

var vendorToMode = map[string]HVACMode{
	"auto":      HVACAuto,
	"blow":      HVACFanOnly,
	"cool":      HVACCool,
	"dry":       HVACDry,
	"warm":      HVACHeat,
	"power-off": HVACOff,
}
