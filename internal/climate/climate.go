// Package climate exposes an AC appliance as a typed read/command surface
// over the coordinator cache. An adapter holds ids, never snapshot
// references: every read looks the appliance up in the current snapshot.
package climate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"remobridge/internal/coordinator"
	"remobridge/internal/remo"

	"go.uber.org/zap"
)

// Default target temperatures applied when switching to a mode that was
// never used with an explicit setpoint.
const (
	DefaultCoolTemp = 28.0
	DefaultHeatTemp = 20.0
)

// Adapter projects one AC appliance out of the coordinator cache and
// forwards commands to the cloud, merging each response back into the cache
type Adapter struct {
	applianceID string
	deviceID    string
	name        string
	coord       *coordinator.Coordinator
	client      remo.Client
	logger      *zap.Logger
	sub         coordinator.Subscription

	mu         sync.Mutex
	lastTarget map[string]string // vendor mode -> last explicit target temperature
	defaults   map[HVACMode]float64
}

// New creates an adapter for an AC appliance and subscribes it to the
// coordinator. defaults may be nil to use the built-in cool/heat defaults.
func New(coord *coordinator.Coordinator, client remo.Client, appliance *remo.Appliance, defaults map[HVACMode]float64, logger *zap.Logger) *Adapter {
	if defaults == nil {
		defaults = map[HVACMode]float64{
			HVACCool: DefaultCoolTemp,
			HVACHeat: DefaultHeatTemp,
		}
	}

	a := &Adapter{
		applianceID: appliance.ID,
		deviceID:    appliance.Device.ID,
		name:        appliance.Nickname,
		coord:       coord,
		client:      client,
		logger:      logger.Named("climate"),
		lastTarget:  make(map[string]string),
		defaults:    defaults,
	}

	a.recordSettings(appliance.Settings)
	a.sub = coord.Subscribe(a.onUpdate)
	return a
}

// Close releases the coordinator subscription
func (a *Adapter) Close() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
}

// ApplianceID returns the id of the appliance this adapter renders
func (a *Adapter) ApplianceID() string {
	return a.applianceID
}

// Name returns the appliance nickname
func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) onUpdate() {
	appliance, err := a.coord.Appliance(a.applianceID)
	if err != nil {
		// Removed remotely between refreshes, nothing to record.
		a.logger.Debug("Appliance absent from snapshot",
			zap.String("appliance_id", a.applianceID))
		return
	}
	a.recordSettings(appliance.Settings)
}

// recordSettings remembers the explicit target temperature per vendor mode
// so switching back to a previously used mode restores its prior setpoint
func (a *Adapter) recordSettings(settings *remo.AirconSettings) {
	if settings == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if settings.Mode != "" && settings.Temperature != "" {
		if _, err := strconv.ParseFloat(settings.Temperature, 64); err == nil {
			a.lastTarget[settings.Mode] = settings.Temperature
		}
	}
}

func (a *Adapter) appliance() (*remo.Appliance, error) {
	return a.coord.Appliance(a.applianceID)
}

// HVACMode returns the rendered mode. The off button wins over the vendor
// operation mode, which stays recoverable on the settings record.
func (a *Adapter) HVACMode() (HVACMode, error) {
	appliance, err := a.appliance()
	if err != nil {
		return "", err
	}
	settings := appliance.Settings
	if settings == nil {
		return "", fmt.Errorf("appliance %s has no settings", a.applianceID)
	}

	if settings.Button == remo.ButtonPowerOff {
		return HVACOff, nil
	}
	mode, ok := vendorToMode[settings.Mode]
	if !ok {
		return "", fmt.Errorf("unknown operation mode %q", settings.Mode)
	}
	return mode, nil
}

// HVACModes returns the modes the appliance supports, plus off
func (a *Adapter) HVACModes() ([]HVACMode, error) {
	appliance, err := a.appliance()
	if err != nil {
		return nil, err
	}
	if appliance.Aircon == nil {
		return nil, fmt.Errorf("appliance %s has no aircon capability", a.applianceID)
	}

	modes := make([]HVACMode, 0, len(appliance.Aircon.Range.Modes)+1)
	for vendor := range appliance.Aircon.Range.Modes {
		if mode, ok := vendorToMode[vendor]; ok {
			modes = append(modes, mode)
		}
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	modes = append(modes, HVACOff)
	return modes, nil
}

// TargetTemperature returns the current setpoint. ok is false when the
// appliance reports no parsable temperature for the active mode.
func (a *Adapter) TargetTemperature() (value float64, ok bool, err error) {
	appliance, err := a.appliance()
	if err != nil {
		return 0, false, err
	}
	if appliance.Settings == nil {
		return 0, false, nil
	}

	v, perr := strconv.ParseFloat(appliance.Settings.Temperature, 64)
	if perr != nil {
		return 0, false, nil
	}
	return v, true, nil
}

// CurrentTemperature returns the newest temperature reading of the paired
// device. ok is false when the device has no temperature event.
func (a *Adapter) CurrentTemperature() (value float64, ok bool, err error) {
	device, err := a.coord.Device(a.deviceID)
	if err != nil {
		return 0, false, err
	}
	event, present := device.NewestEvents[remo.EventTemperature]
	if !present {
		return 0, false, nil
	}
	return event.Value, true, nil
}

// FanMode returns the current fan setting, empty when the appliance does
// not report one
func (a *Adapter) FanMode() (string, error) {
	appliance, err := a.appliance()
	if err != nil {
		return "", err
	}
	if appliance.Settings == nil {
		return "", nil
	}
	return appliance.Settings.Volume, nil
}

// FanModes lists the fan settings allowed in the current vendor mode
func (a *Adapter) FanModes() ([]string, error) {
	modeRange, err := a.currentModeRange()
	if err != nil {
		return nil, err
	}
	return modeRange.Volumes, nil
}

// SwingMode returns the current swing setting, empty when the appliance
// does not report one
func (a *Adapter) SwingMode() (string, error) {
	appliance, err := a.appliance()
	if err != nil {
		return "", err
	}
	if appliance.Settings == nil {
		return "", nil
	}
	return appliance.Settings.Direction, nil
}

// SwingModes lists the swing settings allowed in the current vendor mode
func (a *Adapter) SwingModes() ([]string, error) {
	modeRange, err := a.currentModeRange()
	if err != nil {
		return nil, err
	}
	return modeRange.Directions, nil
}

// MinTemp returns the lowest allowed setpoint in the current mode, 0 when
// the capability list is empty
func (a *Adapter) MinTemp() (float64, error) {
	temps, err := a.tempRange()
	if err != nil {
		return 0, err
	}
	if len(temps) == 0 {
		return 0, nil
	}
	min := temps[0]
	for _, t := range temps[1:] {
		if t < min {
			min = t
		}
	}
	return min, nil
}

// MaxTemp returns the highest allowed setpoint in the current mode, 0 when
// the capability list is empty
func (a *Adapter) MaxTemp() (float64, error) {
	temps, err := a.tempRange()
	if err != nil {
		return 0, err
	}
	if len(temps) == 0 {
		return 0, nil
	}
	max := temps[0]
	for _, t := range temps[1:] {
		if t > max {
			max = t
		}
	}
	return max, nil
}

// TargetTemperatureStep derives the setpoint step from the gap between the
// first two allowed values: 0.5 and 1.0 are valid steps, anything else
// falls back to 1.
func (a *Adapter) TargetTemperatureStep() (float64, error) {
	temps, err := a.tempRange()
	if err != nil {
		return 0, err
	}
	if len(temps) >= 2 {
		step := math.Round((temps[1]-temps[0])*10) / 10
		if step == 1.0 || step == 0.5 {
			return step, nil
		}
	}
	return 1, nil
}

// SetTemperature sends a new target temperature and merges the response
// into the cache
func (a *Adapter) SetTemperature(ctx context.Context, target float64) error {
	a.logger.Debug("Set temperature",
		zap.String("appliance_id", a.applianceID),
		zap.Float64("target", target))

	return a.send(ctx, map[string]string{
		remo.SettingTemperature: formatTemperature(target),
	})
}

// SetHVACMode switches the operation mode. Off is sent as the power
// button. A mode previously used with an explicit setpoint restores that
// setpoint; a never-used mode with a configured default applies the
// default; otherwise the mode change goes alone.
func (a *Adapter) SetHVACMode(ctx context.Context, mode HVACMode) error {
	vendor, ok := modeToVendor[mode]
	if !ok {
		return fmt.Errorf("unsupported hvac mode %q", mode)
	}

	a.logger.Debug("Set hvac mode",
		zap.String("appliance_id", a.applianceID),
		zap.String("mode", string(mode)))

	if mode == HVACOff {
		return a.send(ctx, map[string]string{remo.SettingButton: vendor})
	}

	values := map[string]string{remo.SettingOperationMode: vendor}
	a.mu.Lock()
	if last, ok := a.lastTarget[vendor]; ok && last != "" {
		values[remo.SettingTemperature] = last
	} else if d, ok := a.defaults[mode]; ok {
		values[remo.SettingTemperature] = formatTemperature(d)
	}
	a.mu.Unlock()

	return a.send(ctx, values)
}

// SetFanMode sends a new fan setting
func (a *Adapter) SetFanMode(ctx context.Context, fanMode string) error {
	a.logger.Debug("Set fan mode",
		zap.String("appliance_id", a.applianceID),
		zap.String("fan_mode", fanMode))

	return a.send(ctx, map[string]string{remo.SettingAirVolume: fanMode})
}

// SetSwingMode sends a new swing setting
func (a *Adapter) SetSwingMode(ctx context.Context, swingMode string) error {
	a.logger.Debug("Set swing mode",
		zap.String("appliance_id", a.applianceID),
		zap.String("swing_mode", swingMode))

	return a.send(ctx, map[string]string{remo.SettingAirDirection: swingMode})
}

// Send forwards a raw settings command, used by the local API surface
func (a *Adapter) Send(ctx context.Context, values map[string]string) error {
	return a.send(ctx, values)
}

func (a *Adapter) send(ctx context.Context, values map[string]string) error {
	settings, err := a.client.SendAirconSettings(ctx, a.applianceID, values)
	if err != nil {
		// The cache stays untouched so no phantom state change shows up.
		return fmt.Errorf("appliance %s command: %w", a.applianceID, err)
	}
	return a.coord.MergeApplianceSettings(a.applianceID, settings)
}

func (a *Adapter) currentModeRange() (*remo.ModeRange, error) {
	appliance, err := a.appliance()
	if err != nil {
		return nil, err
	}
	if appliance.Aircon == nil || appliance.Settings == nil {
		return &remo.ModeRange{}, nil
	}
	modeRange, ok := appliance.Aircon.Range.Modes[appliance.Settings.Mode]
	if !ok {
		return &remo.ModeRange{}, nil
	}
	return &modeRange, nil
}

// tempRange parses the allowed temperatures of the current vendor mode,
// skipping the empty placeholders the API pads lists with
func (a *Adapter) tempRange() ([]float64, error) {
	modeRange, err := a.currentModeRange()
	if err != nil {
		return nil, err
	}

	temps := make([]float64, 0, len(modeRange.Temperatures))
	for _, raw := range modeRange.Temperatures {
		if raw == "" {
			continue
		}
		if v, perr := strconv.ParseFloat(raw, 64); perr == nil {
			temps = append(temps, v)
		}
	}
	return temps, nil
}

// formatTemperature renders integral values as whole numbers: the API
// rejects "26.0" where it expects "26"
func formatTemperature(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
