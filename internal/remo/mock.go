package remo

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements Client for testing
type MockClient struct {
	mu            sync.Mutex
	state         *State
	authErr       error
	fetchErr      error
	fetchCalls    int
	fetchGate     chan struct{}
	sendErr       error
	sendResponses map[string]*AirconSettings
	sentCommands  []SentCommand
}

// SentCommand records one SendAirconSettings call for assertions
type SentCommand struct {
	ApplianceID string
	Values      map[string]string
}

// NewMockClient creates a new mock API client
func NewMockClient() *MockClient {
	return &MockClient{
		sendResponses: make(map[string]*AirconSettings),
	}
}

// SetState sets the snapshot returned by Fetch
func (m *MockClient) SetState(s *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// SetAuthError makes AuthCheck fail with err
func (m *MockClient) SetAuthError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authErr = err
}

// SetFetchError makes Fetch fail with err until cleared
func (m *MockClient) SetFetchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// HoldFetch blocks subsequent Fetch calls until the returned release
// function is invoked. Used to test refresh collapsing.
func (m *MockClient) HoldFetch() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gate := make(chan struct{})
	m.fetchGate = gate
	return func() { close(gate) }
}

// SetSendResponse sets the settings object returned for commands to an appliance
func (m *MockClient) SetSendResponse(applianceID string, settings *AirconSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendResponses[applianceID] = settings
}

// SetSendError makes SendAirconSettings fail with err
func (m *MockClient) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// FetchCalls returns how many times Fetch was invoked
func (m *MockClient) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// SentCommands returns a copy of all recorded commands
func (m *MockClient) SentCommands() []SentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentCommand, len(m.sentCommands))
	copy(out, m.sentCommands)
	return out
}

// LastCommand returns the most recent command, or nil if none were sent
func (m *MockClient) LastCommand() *SentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sentCommands) == 0 {
		return nil
	}
	cmd := m.sentCommands[len(m.sentCommands)-1]
	return &cmd
}

// AuthCheck simulates the setup-time auth check
func (m *MockClient) AuthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authErr
}

// Fetch simulates fetching the appliance and device lists. Each call
// returns a distinct snapshot value sharing the configured records.
func (m *MockClient) Fetch(ctx context.Context) (*State, error) {
	m.mu.Lock()
	m.fetchCalls++
	gate := m.fetchGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.state == nil {
		return &State{
			Appliances: make(map[string]*Appliance),
			Devices:    make(map[string]*Device),
		}, nil
	}
	return m.state.Clone(), nil
}

// SendAirconSettings records the command and returns the configured response
func (m *MockClient) SendAirconSettings(ctx context.Context, applianceID string, values map[string]string) (*AirconSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return nil, m.sendErr
	}

	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	m.sentCommands = append(m.sentCommands, SentCommand{
		ApplianceID: applianceID,
		Values:      copied,
	})

	settings, ok := m.sendResponses[applianceID]
	if !ok {
		return nil, fmt.Errorf("no mock response configured for appliance %s", applianceID)
	}

	// Apply the command on top of the configured response so consecutive
	// commands in a test see their own changes reflected.
	next := *settings
	for k, v := range values {
		switch k {
		case SettingTemperature:
			next.Temperature = v
		case SettingOperationMode:
			next.Mode = v
			next.Button = ""
		case SettingAirVolume:
			next.Volume = v
		case SettingAirDirection:
			next.Direction = v
		case SettingButton:
			next.Button = v
		}
	}
	m.sendResponses[applianceID] = &next
	return &next, nil
}
