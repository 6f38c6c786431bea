// Package sensor exposes the latest device readings out of the coordinator
// cache as read-only values.
package sensor

import (
	"errors"
	"fmt"

	"remobridge/internal/coordinator"
	"remobridge/internal/remo"
)

// Kind identifies a sensor class by its event key on the device record
type Kind string

// Sensor classes a Remo device may report.
const (
	Temperature Kind = remo.EventTemperature
	Humidity    Kind = remo.EventHumidity
	Illuminance Kind = remo.EventIlluminance
)

// ErrNoReading indicates the device has no event for this sensor class
var ErrNoReading = errors.New("no reading for sensor")

// Adapter reads one sensor class of one device from the current snapshot
type Adapter struct {
	deviceID string
	kind     Kind
	coord    *coordinator.Coordinator
}

// New creates a sensor adapter for a device reading
func New(coord *coordinator.Coordinator, deviceID string, kind Kind) *Adapter {
	return &Adapter{
		deviceID: deviceID,
		kind:     kind,
		coord:    coord,
	}
}

// DeviceID returns the id of the backing device
func (a *Adapter) DeviceID() string {
	return a.deviceID
}

// Kind returns the sensor class
func (a *Adapter) Kind() Kind {
	return a.kind
}

// Name renders a human-readable name from the device and sensor class
func (a *Adapter) Name() (string, error) {
	device, err := a.coord.Device(a.deviceID)
	if err != nil {
		return "", err
	}

	var label string
	switch a.kind {
	case Temperature:
		label = "Temperature"
	case Humidity:
		label = "Humidity"
	case Illuminance:
		label = "Illuminance"
	default:
		label = string(a.kind)
	}
	return fmt.Sprintf("%s %s", device.Name, label), nil
}

// Value returns the newest reading with the device calibration offset
// applied for temperature and humidity
func (a *Adapter) Value() (float64, error) {
	device, err := a.coord.Device(a.deviceID)
	if err != nil {
		return 0, err
	}

	event, ok := device.NewestEvents[string(a.kind)]
	if !ok {
		return 0, fmt.Errorf("device %s %s: %w", a.deviceID, a.kind, ErrNoReading)
	}

	value := event.Value
	switch a.kind {
	case Temperature:
		value += device.TemperatureOffset
	case Humidity:
		value += device.HumidityOffset
	}
	return value, nil
}
