package remo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultHost is the standard API host used when no override is configured
const DefaultHost = "https://api.nature.global/1"

const requestTimeout = 10 * time.Second

// Form field names accepted by the aircon_settings endpoint. A command
// carries exactly one of these.
const (
	SettingTemperature   = "temperature"
	SettingOperationMode = "operation_mode"
	SettingAirVolume     = "air_volume"
	SettingAirDirection  = "air_direction"
	SettingButton        = "button"
)

// Client defines the interface for the Nature Remo cloud API
type Client interface {
	AuthCheck(ctx context.Context) error
	Fetch(ctx context.Context) (*State, error)
	SendAirconSettings(ctx context.Context, applianceID string, values map[string]string) (*AirconSettings, error)
}

// HTTPClient implements Client against the real cloud API
type HTTPClient struct {
	host   string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates an API client with bearer-token auth. An empty host
// selects DefaultHost.
func NewHTTPClient(host, token string, logger *zap.Logger) *HTTPClient {
	if host == "" {
		host = DefaultHost
	}
	return &HTTPClient{
		host:   strings.TrimSuffix(host, "/"),
		token:  token,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// AuthCheck verifies the access token by listing appliances. Any non-200
// response is treated as an authentication failure.
func (c *HTTPClient) AuthCheck(ctx context.Context) error {
	resp, err := c.get(ctx, "/appliances")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}
	return nil
}

// Fetch retrieves the appliance and device lists and keys them by id
func (c *HTTPClient) Fetch(ctx context.Context) (*State, error) {
	c.logger.Debug("Fetching appliance and device list")

	var appliances []*Appliance
	if err := c.getJSON(ctx, "/appliances", &appliances); err != nil {
		return nil, fmt.Errorf("fetch appliances: %w", err)
	}

	var devices []*Device
	if err := c.getJSON(ctx, "/devices", &devices); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}

	state := &State{
		Appliances: make(map[string]*Appliance, len(appliances)),
		Devices:    make(map[string]*Device, len(devices)),
	}
	for _, a := range appliances {
		state.Appliances[a.ID] = a
	}
	for _, d := range devices {
		state.Devices[d.ID] = d
	}
	return state, nil
}

// SendAirconSettings posts one settings change for an appliance and returns
// the updated settings object the API responds with
func (c *HTTPClient) SendAirconSettings(ctx context.Context, applianceID string, values map[string]string) (*AirconSettings, error) {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}

	path := fmt.Sprintf("/appliances/%s/aircon_settings", applianceID)
	c.logger.Debug("Sending aircon settings",
		zap.String("appliance_id", applianceID),
		zap.String("form", form.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("aircon_settings request failed: status %d", resp.StatusCode)
	}

	var settings AirconSettings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return nil, fmt.Errorf("decode aircon_settings response: %w", err)
	}
	return &settings, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return resp, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
