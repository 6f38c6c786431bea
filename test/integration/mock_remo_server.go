package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"remobridge/internal/remo"
)

// MockRemoServer simulates the vendor cloud API: bearer-token auth, the
// appliance and device listings, and the aircon_settings command endpoint
// applying commands to its in-memory state.
type MockRemoServer struct {
	Token string

	mu         sync.Mutex
	appliances map[string]*remo.Appliance
	devices    map[string]*remo.Device
	fetches    int

	server *httptest.Server
}

// NewMockRemoServer creates a vendor mock with the given auth token
func NewMockRemoServer(token string) *MockRemoServer {
	m := &MockRemoServer{
		Token:      token,
		appliances: make(map[string]*remo.Appliance),
		devices:    make(map[string]*remo.Device),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL to point the bridge at
func (m *MockRemoServer) URL() string {
	return m.server.URL
}

// Close shuts the mock down
func (m *MockRemoServer) Close() {
	m.server.Close()
}

// AddAppliance seeds an appliance
func (m *MockRemoServer) AddAppliance(a *remo.Appliance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appliances[a.ID] = a
}

// AddDevice seeds a device
func (m *MockRemoServer) AddDevice(d *remo.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d
}

// SetDeviceTemperature changes a device's newest temperature event, as if
// the room changed between polls
func (m *MockRemoServer) SetDeviceTemperature(deviceID string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[deviceID]; ok {
		d.NewestEvents[remo.EventTemperature] = remo.SensorEvent{Value: value}
	}
}

// FetchCount returns how many appliance listings were served
func (m *MockRemoServer) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *MockRemoServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+m.Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/appliances":
		m.mu.Lock()
		m.fetches++
		list := make([]*remo.Appliance, 0, len(m.appliances))
		for _, a := range m.appliances {
			list = append(list, a)
		}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(list)

	case r.Method == http.MethodGet && r.URL.Path == "/devices":
		m.mu.Lock()
		list := make([]*remo.Device, 0, len(m.devices))
		for _, d := range m.devices {
			list = append(list, d)
		}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(list)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/aircon_settings"):
		m.handleAirconSettings(w, r)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockRemoServer) handleAirconSettings(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "appliances" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	applianceID := parts[1]

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	appliance, ok := m.appliances[applianceID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	settings := *appliance.Settings
	if v := r.PostForm.Get("temperature"); v != "" {
		settings.Temperature = v
	}
	if v := r.PostForm.Get("operation_mode"); v != "" {
		settings.Mode = v
		settings.Button = ""
	}
	if v := r.PostForm.Get("air_volume"); v != "" {
		settings.Volume = v
	}
	if v := r.PostForm.Get("air_direction"); v != "" {
		settings.Direction = v
	}
	if v := r.PostForm.Get("button"); v != "" {
		settings.Button = v
	}
	appliance.Settings = &settings

	json.NewEncoder(w).Encode(&settings)
}
