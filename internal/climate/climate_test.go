package climate

import (
	"context"
	"errors"
	"testing"
	"time"

	"remobridge/internal/clock"
	"remobridge/internal/coordinator"
	"remobridge/internal/remo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAppliance() *remo.Appliance {
	return &remo.Appliance{
		ID:       "ac-1",
		Type:     remo.ApplianceTypeAC,
		Nickname: "Living AC",
		Device:   remo.ApplianceDevice{ID: "dev-1", Name: "Living"},
		Settings: &remo.AirconSettings{Temperature: "26", Mode: "cool", Volume: "auto", Direction: "swing"},
		Aircon: &remo.Aircon{
			Range: remo.AirconRange{
				Modes: map[string]remo.ModeRange{
					"cool": {
						Temperatures: []string{"16", "16.5", "17", "17.5", "18"},
						Volumes:      []string{"1", "2", "3", "auto"},
						Directions:   []string{"swing", "still"},
					},
					"warm": {
						Temperatures: []string{"16", "18", "20"},
						Volumes:      []string{"1", "2", "auto"},
						Directions:   []string{"swing", "still"},
					},
					"dry": {
						Temperatures: []string{},
						Volumes:      []string{"auto"},
						Directions:   []string{"swing"},
					},
				},
				FixedButtons: []string{remo.ButtonPowerOff},
			},
			TemperatureUnit: "c",
		},
	}
}

func testDevice() *remo.Device {
	return &remo.Device{
		ID:   "dev-1",
		Name: "Living",
		NewestEvents: map[string]remo.SensorEvent{
			remo.EventTemperature: {Value: 25.8},
		},
	}
}

// setupAdapter builds a refreshed coordinator around one AC and returns a
// climate adapter for it
func setupAdapter(t *testing.T, appliance *remo.Appliance, defaults map[HVACMode]float64) (*Adapter, *remo.MockClient, *coordinator.Coordinator) {
	client := remo.NewMockClient()
	client.SetState(&remo.State{
		Appliances: map[string]*remo.Appliance{appliance.ID: appliance},
		Devices:    map[string]*remo.Device{"dev-1": testDevice()},
	})
	client.SetSendResponse(appliance.ID, appliance.Settings)

	mockClock := clock.NewMock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	coord, err := coordinator.New(client, 0, mockClock, zap.NewNop())
	require.NoError(t, err)
	_, err = coord.Refresh(context.Background())
	require.NoError(t, err)

	current, err := coord.Appliance(appliance.ID)
	require.NoError(t, err)

	adapter := New(coord, client, current, defaults, zap.NewNop())
	t.Cleanup(adapter.Close)
	return adapter, client, coord
}

func TestAdapter_ReadSurface(t *testing.T) {
	adapter, _, _ := setupAdapter(t, testAppliance(), nil)

	mode, err := adapter.HVACMode()
	require.NoError(t, err)
	assert.Equal(t, HVACCool, mode)

	target, ok, err := adapter.TargetTemperature()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 26, target, 0.001)

	current, ok, err := adapter.CurrentTemperature()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 25.8, current, 0.001)

	fan, err := adapter.FanMode()
	require.NoError(t, err)
	assert.Equal(t, "auto", fan)

	fans, err := adapter.FanModes()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "auto"}, fans)

	swing, err := adapter.SwingMode()
	require.NoError(t, err)
	assert.Equal(t, "swing", swing)

	modes, err := adapter.HVACModes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []HVACMode{HVACCool, HVACHeat, HVACDry, HVACOff}, modes)
	assert.Equal(t, HVACOff, modes[len(modes)-1])
}

func TestAdapter_TemperatureRange(t *testing.T) {
	t.Run("half degree step", func(t *testing.T) {
		adapter, _, _ := setupAdapter(t, testAppliance(), nil)

		step, err := adapter.TargetTemperatureStep()
		require.NoError(t, err)
		assert.InDelta(t, 0.5, step, 0.001)

		min, err := adapter.MinTemp()
		require.NoError(t, err)
		assert.InDelta(t, 16, min, 0.001)

		max, err := adapter.MaxTemp()
		require.NoError(t, err)
		assert.InDelta(t, 18, max, 0.001)
	})

	t.Run("gap of two is not a valid step", func(t *testing.T) {
		appliance := testAppliance()
		appliance.Settings.Mode = "warm"
		adapter, _, _ := setupAdapter(t, appliance, nil)

		step, err := adapter.TargetTemperatureStep()
		require.NoError(t, err)
		assert.InDelta(t, 1, step, 0.001)
	})

	t.Run("empty list yields a degenerate range", func(t *testing.T) {
		appliance := testAppliance()
		appliance.Settings.Mode = "dry"
		appliance.Settings.Temperature = ""
		adapter, _, _ := setupAdapter(t, appliance, nil)

		min, err := adapter.MinTemp()
		require.NoError(t, err)
		assert.Zero(t, min)

		max, err := adapter.MaxTemp()
		require.NoError(t, err)
		assert.Zero(t, max)

		step, err := adapter.TargetTemperatureStep()
		require.NoError(t, err)
		assert.InDelta(t, 1, step, 0.001)
	})
}

func TestAdapter_SetTemperature(t *testing.T) {
	adapter, client, _ := setupAdapter(t, testAppliance(), nil)

	t.Run("whole numbers are sent without a decimal point", func(t *testing.T) {
		require.NoError(t, adapter.SetTemperature(context.Background(), 22))

		cmd := client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, map[string]string{remo.SettingTemperature: "22"}, cmd.Values)

		target, ok, err := adapter.TargetTemperature()
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 22, target, 0.001)
	})

	t.Run("half degrees keep one decimal", func(t *testing.T) {
		require.NoError(t, adapter.SetTemperature(context.Background(), 22.5))

		cmd := client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, "22.5", cmd.Values[remo.SettingTemperature])
	})
}

func TestAdapter_SetHVACMode(t *testing.T) {
	t.Run("never used mode applies the default", func(t *testing.T) {
		adapter, client, _ := setupAdapter(t, testAppliance(), nil)

		require.NoError(t, adapter.SetHVACMode(context.Background(), HVACHeat))

		cmd := client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, "warm", cmd.Values[remo.SettingOperationMode])
		assert.Equal(t, "20", cmd.Values[remo.SettingTemperature])
	})

	t.Run("configured default overrides the built-in one", func(t *testing.T) {
		adapter, client, _ := setupAdapter(t, testAppliance(), map[HVACMode]float64{
			HVACHeat: 23,
		})

		require.NoError(t, adapter.SetHVACMode(context.Background(), HVACHeat))

		cmd := client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, "23", cmd.Values[remo.SettingTemperature])
	})

	t.Run("previously used mode restores its remembered setpoint", func(t *testing.T) {
		adapter, client, _ := setupAdapter(t, testAppliance(), nil)

		// cool already has 26 remembered from the initial settings.
		require.NoError(t, adapter.SetHVACMode(context.Background(), HVACHeat))
		require.NoError(t, adapter.SetTemperature(context.Background(), 21))
		require.NoError(t, adapter.SetHVACMode(context.Background(), HVACCool))

		cmd := client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, "cool", cmd.Values[remo.SettingOperationMode])
		assert.Equal(t, "26", cmd.Values[remo.SettingTemperature])

		// And warm now remembers the explicit 21 over its default.
		require.NoError(t, adapter.SetHVACMode(context.Background(), HVACHeat))
		cmd = client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, "21", cmd.Values[remo.SettingTemperature])
	})

	t.Run("no memory and no default sends the mode alone", func(t *testing.T) {
		appliance := testAppliance()
		appliance.Settings.Mode = "cool"
		adapter, client, _ := setupAdapter(t, appliance, map[HVACMode]float64{})

		require.NoError(t, adapter.SetHVACMode(context.Background(), HVACHeat))

		cmd := client.LastCommand()
		require.NotNil(t, cmd)
		assert.Equal(t, map[string]string{remo.SettingOperationMode: "warm"}, cmd.Values)
	})

	t.Run("unsupported mode is rejected", func(t *testing.T) {
		adapter, client, _ := setupAdapter(t, testAppliance(), nil)

		err := adapter.SetHVACMode(context.Background(), HVACMode("banana"))
		require.Error(t, err)
		assert.Nil(t, client.LastCommand())
	})
}

func TestAdapter_OffButton(t *testing.T) {
	adapter, client, coord := setupAdapter(t, testAppliance(), nil)

	require.NoError(t, adapter.SetHVACMode(context.Background(), HVACOff))

	cmd := client.LastCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, map[string]string{remo.SettingButton: remo.ButtonPowerOff}, cmd.Values)

	mode, err := adapter.HVACMode()
	require.NoError(t, err)
	assert.Equal(t, HVACOff, mode)

	// The vendor mode stays recoverable underneath the off button.
	appliance, err := coord.Appliance("ac-1")
	require.NoError(t, err)
	assert.Equal(t, "cool", appliance.Settings.Mode)

	// Turning back on restores the remembered cool setpoint.
	require.NoError(t, adapter.SetHVACMode(context.Background(), HVACCool))
	mode, err = adapter.HVACMode()
	require.NoError(t, err)
	assert.Equal(t, HVACCool, mode)

	cmd = client.LastCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "26", cmd.Values[remo.SettingTemperature])
}

func TestAdapter_CommandFailureLeavesCacheUntouched(t *testing.T) {
	adapter, client, coord := setupAdapter(t, testAppliance(), nil)
	client.SetSendError(errors.New("boom"))

	before, err := coord.Appliance("ac-1")
	require.NoError(t, err)

	err = adapter.SetTemperature(context.Background(), 18)
	require.Error(t, err)

	after, err := coord.Appliance("ac-1")
	require.NoError(t, err)
	assert.Same(t, before, after)

	target, ok, err := adapter.TargetTemperature()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 26, target, 0.001)
}

func TestAdapter_FollowsRefreshedSnapshot(t *testing.T) {
	appliance := testAppliance()
	adapter, client, coord := setupAdapter(t, appliance, nil)

	// The remote state changes out of band; the next refresh replaces the
	// snapshot wholesale and the adapter re-reads it by id.
	updated := testAppliance()
	updated.Settings = &remo.AirconSettings{Temperature: "17", Mode: "warm", Volume: "1", Direction: "still"}
	client.SetState(&remo.State{
		Appliances: map[string]*remo.Appliance{appliance.ID: updated},
		Devices:    map[string]*remo.Device{"dev-1": testDevice()},
	})

	_, err := coord.Refresh(context.Background())
	require.NoError(t, err)

	mode, err := adapter.HVACMode()
	require.NoError(t, err)
	assert.Equal(t, HVACHeat, mode)

	target, ok, err := adapter.TargetTemperature()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 17, target, 0.001)

	// The refresh also updated the warm-mode memory, so switching away and
	// back restores 17.
	require.NoError(t, adapter.SetHVACMode(context.Background(), HVACCool))
	require.NoError(t, adapter.SetHVACMode(context.Background(), HVACHeat))

	cmd := client.LastCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "17", cmd.Values[remo.SettingTemperature])
}
