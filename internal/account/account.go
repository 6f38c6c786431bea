// Package account ties one configured cloud account to its coordinator and
// entity adapters. Handles are passed explicitly; there is no process-wide
// registry. Lifecycle is Setup then Close.
package account

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"remobridge/internal/climate"
	"remobridge/internal/clock"
	"remobridge/internal/config"
	"remobridge/internal/coordinator"
	"remobridge/internal/remo"
	"remobridge/internal/sensor"

	"go.uber.org/zap"
)

// Setup failure classes, distinguished so the operator sees what went
// wrong: unreachable host, rejected token, or something unexpected.
var (
	ErrCannotConnect = errors.New("cannot connect")
	ErrInvalidAuth   = errors.New("invalid authentication")
	ErrUnknown       = errors.New("unexpected error")
)

// Account is one configured account with its running coordinator and the
// adapters built from its first snapshot
type Account struct {
	Name        string
	Coordinator *coordinator.Coordinator
	Climates    []*climate.Adapter
	Sensors     []*sensor.Adapter

	client remo.Client
	logger *zap.Logger
	cancel context.CancelFunc
}

// Setup validates the account credentials, starts the coordinator with an
// initial blocking refresh, and builds adapters for every AC appliance and
// device reading. Setup is blocked on any validation failure.
func Setup(ctx context.Context, cfg config.Account, clk clock.Clock, logger *zap.Logger) (*Account, error) {
	log := logger.Named("account").With(zap.String("account", cfg.Name))
	client := remo.NewHTTPClient(cfg.Host, cfg.AccessToken, log.Named("remo"))
	return setup(ctx, cfg, client, clk, log)
}

// SetupWithClient is Setup with an injected API client, used by tests
func SetupWithClient(ctx context.Context, cfg config.Account, client remo.Client, clk clock.Clock, logger *zap.Logger) (*Account, error) {
	log := logger.Named("account").With(zap.String("account", cfg.Name))
	return setup(ctx, cfg, client, clk, log)
}

func setup(ctx context.Context, cfg config.Account, client remo.Client, clk clock.Clock, log *zap.Logger) (*Account, error) {
	if err := client.AuthCheck(ctx); err != nil {
		return nil, classifySetupError(cfg.Name, err)
	}

	coord, err := coordinator.New(client, cfg.Interval(), clk, log.Named("coordinator"))
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", cfg.Name, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := coord.Start(runCtx); err != nil {
		cancel()
		return nil, classifySetupError(cfg.Name, err)
	}

	account := &Account{
		Name:        cfg.Name,
		Coordinator: coord,
		client:      client,
		logger:      log,
		cancel:      cancel,
	}
	account.buildAdapters(cfg)

	log.Info("Account ready",
		zap.Int("climates", len(account.Climates)),
		zap.Int("sensors", len(account.Sensors)),
		zap.Duration("poll_interval", coord.Interval()))
	return account, nil
}

func (a *Account) buildAdapters(cfg config.Account) {
	state := a.Coordinator.State()
	if state == nil {
		return
	}

	defaults := defaultTemperatures(cfg)

	applianceIDs := make([]string, 0, len(state.Appliances))
	for id := range state.Appliances {
		applianceIDs = append(applianceIDs, id)
	}
	sort.Strings(applianceIDs)

	for _, id := range applianceIDs {
		appliance := state.Appliances[id]
		if appliance.Type != remo.ApplianceTypeAC {
			continue
		}
		a.Climates = append(a.Climates,
			climate.New(a.Coordinator, a.client, appliance, defaults, a.logger))
	}

	deviceIDs := make([]string, 0, len(state.Devices))
	for id := range state.Devices {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	for _, id := range deviceIDs {
		device := state.Devices[id]
		for _, kind := range []sensor.Kind{sensor.Temperature, sensor.Humidity, sensor.Illuminance} {
			if _, ok := device.NewestEvents[string(kind)]; ok {
				a.Sensors = append(a.Sensors, sensor.New(a.Coordinator, id, kind))
			}
		}
	}
}

// Climate returns the adapter for an appliance id
func (a *Account) Climate(applianceID string) (*climate.Adapter, error) {
	for _, c := range a.Climates {
		if c.ApplianceID() == applianceID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("appliance %s: %w", applianceID, coordinator.ErrNotFound)
}

// Close stops the poll loop and releases all adapter subscriptions
func (a *Account) Close() {
	a.cancel()
	for _, c := range a.Climates {
		c.Close()
	}
	a.logger.Info("Account closed")
}

func defaultTemperatures(cfg config.Account) map[climate.HVACMode]float64 {
	if cfg.DefaultTemperatures == nil {
		return nil
	}
	defaults := make(map[climate.HVACMode]float64, 2)
	if cfg.DefaultTemperatures.Cool != 0 {
		defaults[climate.HVACCool] = cfg.DefaultTemperatures.Cool
	}
	if cfg.DefaultTemperatures.Warm != 0 {
		defaults[climate.HVACHeat] = cfg.DefaultTemperatures.Warm
	}
	return defaults
}

func classifySetupError(name string, err error) error {
	switch {
	case errors.Is(err, remo.ErrConnection):
		return fmt.Errorf("account %q: %w: %v", name, ErrCannotConnect, err)
	case errors.Is(err, remo.ErrAuth):
		return fmt.Errorf("account %q: %w: %v", name, ErrInvalidAuth, err)
	default:
		return fmt.Errorf("account %q: %w: %v", name, ErrUnknown, err)
	}
}
