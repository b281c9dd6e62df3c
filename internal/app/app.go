package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"vejrstation-node/internal/bus"
	"vejrstation-node/internal/clock"
	"vejrstation-node/internal/config"
	"vejrstation-node/internal/indicator"
	"vejrstation-node/internal/logging"
	"vejrstation-node/internal/mqtt"
	"vejrstation-node/internal/sensor"
	"vejrstation-node/internal/supervisor"
)

// hardware is the sensor side of the node for one backend.
type hardware struct {
	driver sensor.Driver
	bus    sensor.Resetter
	close  func()
}

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("initializing node",
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"mqtt_topic", cfg.MQTTTopic,
		"sensor_backend", cfg.SensorBackend,
		"indicator", cfg.Indicator,
	)

	hw, err := openHardware(cfg, logging.Component(logger, "sensor"))
	if err != nil {
		return err
	}
	defer hw.close()

	display, err := openDisplay(cfg, os.Stdout)
	if err != nil {
		logger.Warn("indicator could not be initialized; node continues without it",
			"pin", cfg.IndicatorPin,
			"error", err,
		)
		display = indicator.Nop{}
	}
	ind := indicator.New(display, clock.Real{}, logging.Component(logger, "indicator"))
	defer ind.Clear()

	mqttClient := mqtt.NewClient(cfg, logging.Component(logger, "mqtt"))
	defer mqttClient.Disconnect()

	sup := supervisor.New(hw.driver, hw.bus, mqttClient, ind, clock.Real{}, options(cfg), logging.Component(logger, "supervisor"))
	err = sup.Run(ctx)
	if errors.Is(err, supervisor.ErrBringUp) {
		logger.Error("node stopped in fault state", "error", err)
	}

	logger.Info("node shutting down", "cycles", sup.Cycle())
	return err
}

func options(cfg config.Config) supervisor.Options {
	opts := supervisor.DefaultOptions()
	opts.Cadence = cfg.SensorCadence
	return opts
}

func openHardware(cfg config.Config, logger *slog.Logger) (hardware, error) {
	switch cfg.SensorBackend {
	case "gobot":
		g, err := sensor.OpenGobot(cfg.GobotI2CBus, logger)
		if err != nil {
			return hardware{}, err
		}
		return hardware{
			driver: g,
			bus:    g,
			close:  func() { closeLogged(logger, "sensor", g) },
		}, nil

	case "periph", "":
		b, err := bus.Open(cfg.I2CBus, logger)
		if err != nil {
			return hardware{}, err
		}
		dev := sensor.NewBME280(b, logger)
		return hardware{
			driver: dev,
			bus:    b,
			close: func() {
				closeLogged(logger, "sensor", dev)
				closeLogged(logger, "i2c bus", b)
			},
		}, nil

	default:
		return hardware{}, fmt.Errorf("unknown sensor backend %q", cfg.SensorBackend)
	}
}

func openDisplay(cfg config.Config, w io.Writer) (indicator.Display, error) {
	switch cfg.Indicator {
	case "console", "":
		return indicator.NewConsole(w), nil
	case "gpio":
		led, err := indicator.OpenLED(cfg.IndicatorPin)
		if err != nil {
			return nil, err
		}
		return led, nil
	case "none":
		return indicator.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown indicator %q", cfg.Indicator)
	}
}

func closeLogged(logger *slog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "what", what, "error", err)
	}
}
