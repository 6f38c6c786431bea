package account

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"remobridge/internal/clock"
	"remobridge/internal/config"
	"remobridge/internal/remo"
	"remobridge/internal/sensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testState() *remo.State {
	return &remo.State{
		Appliances: map[string]*remo.Appliance{
			"ac-1": {
				ID:       "ac-1",
				Type:     remo.ApplianceTypeAC,
				Nickname: "Living AC",
				Device:   remo.ApplianceDevice{ID: "dev-1"},
				Settings: &remo.AirconSettings{Temperature: "26", Mode: "cool"},
				Aircon: &remo.Aircon{Range: remo.AirconRange{Modes: map[string]remo.ModeRange{
					"cool": {Temperatures: []string{"16", "17"}},
				}}},
			},
			"tv-1": {ID: "tv-1", Type: "TV", Nickname: "TV"},
		},
		Devices: map[string]*remo.Device{
			"dev-1": {
				ID:   "dev-1",
				Name: "Living",
				NewestEvents: map[string]remo.SensorEvent{
					remo.EventTemperature: {Value: 25.8},
					remo.EventHumidity:    {Value: 52},
				},
			},
		},
	}
}

func testConfig() config.Account {
	return config.Account{
		Name:        "home",
		AccessToken: "token",
	}
}

func TestSetup(t *testing.T) {
	client := remo.NewMockClient()
	client.SetState(testState())
	mockClock := clock.NewMock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	acct, err := SetupWithClient(context.Background(), testConfig(), client, mockClock, zap.NewNop())
	require.NoError(t, err)
	defer acct.Close()

	assert.Equal(t, "home", acct.Name)
	assert.Equal(t, 1, client.FetchCalls())
	require.NotNil(t, acct.Coordinator.State())

	// One climate adapter for the AC; the TV appliance gets none.
	require.Len(t, acct.Climates, 1)
	assert.Equal(t, "ac-1", acct.Climates[0].ApplianceID())

	// One sensor per reading present on the device.
	require.Len(t, acct.Sensors, 2)
	kinds := []sensor.Kind{acct.Sensors[0].Kind(), acct.Sensors[1].Kind()}
	assert.ElementsMatch(t, []sensor.Kind{sensor.Temperature, sensor.Humidity}, kinds)

	adapter, err := acct.Climate("ac-1")
	require.NoError(t, err)
	assert.Equal(t, "Living AC", adapter.Name())

	_, err = acct.Climate("tv-1")
	require.Error(t, err)
}

func TestSetup_FailureClasses(t *testing.T) {
	mockClock := clock.NewMock(time.Now())

	tests := []struct {
		name    string
		authErr error
		want    error
	}{
		{
			name:    "unreachable host",
			authErr: fmt.Errorf("%w: dial tcp: timeout", remo.ErrConnection),
			want:    ErrCannotConnect,
		},
		{
			name:    "rejected token",
			authErr: fmt.Errorf("%w: status 401", remo.ErrAuth),
			want:    ErrInvalidAuth,
		},
		{
			name:    "anything else",
			authErr: errors.New("boom"),
			want:    ErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := remo.NewMockClient()
			client.SetAuthError(tt.authErr)

			_, err := SetupWithClient(context.Background(), testConfig(), client, mockClock, zap.NewNop())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), `account "home"`)
		})
	}
}

func TestSetup_InitialRefreshFailure(t *testing.T) {
	client := remo.NewMockClient()
	client.SetFetchError(fmt.Errorf("%w: dial tcp: refused", remo.ErrConnection))
	mockClock := clock.NewMock(time.Now())

	_, err := SetupWithClient(context.Background(), testConfig(), client, mockClock, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConnect)
}

func TestSetup_IntervalRejected(t *testing.T) {
	client := remo.NewMockClient()
	client.SetState(testState())
	mockClock := clock.NewMock(time.Now())

	cfg := testConfig()
	cfg.PollIntervalSeconds = 5

	_, err := SetupWithClient(context.Background(), cfg, client, mockClock, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below")
}

func TestClose_StopsPolling(t *testing.T) {
	client := remo.NewMockClient()
	client.SetState(testState())
	mockClock := clock.NewMock(time.Now())

	acct, err := SetupWithClient(context.Background(), testConfig(), client, mockClock, zap.NewNop())
	require.NoError(t, err)

	acct.Close()
	time.Sleep(20 * time.Millisecond)

	calls := client.FetchCalls()
	mockClock.Advance(10 * acct.Coordinator.Interval())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, client.FetchCalls())
}

func TestSetup_RealClientAgainstMockServer(t *testing.T) {
	// Exercised end to end in test/integration; here only the error path
	// for an unreachable host with the real HTTP client.
	cfg := testConfig()
	cfg.Host = "http://127.0.0.1:1"

	_, err := Setup(context.Background(), cfg, clock.NewMock(time.Now()), zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConnect)
}
