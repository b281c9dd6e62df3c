package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	MQTTBroker            string
	MQTTPort              int
	MQTTClientID          string
	MQTTTopic             string
	MQTTReconnectInterval time.Duration

	// I2CBus is the periph bus name; empty selects the first registered bus.
	I2CBus        string
	SensorBackend string
	GobotI2CBus   int
	SensorCadence time.Duration

	Indicator    string
	IndicatorPin string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "192.168.115.10"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "VerjStationClient"
	}

	mqttTopic := strings.TrimSpace(os.Getenv("MQTT_TOPIC"))
	if mqttTopic == "" {
		mqttTopic = "verjstation/data"
	}

	reconnectInterval, err := parsePositiveDuration("MQTT_RECONNECT_INTERVAL", "5s")
	if err != nil {
		return Config{}, err
	}

	sensorBackend := strings.ToLower(strings.TrimSpace(os.Getenv("SENSOR_BACKEND")))
	if sensorBackend == "" {
		sensorBackend = "periph"
	}
	switch sensorBackend {
	case "periph", "gobot":
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_BACKEND %q (allowed: periph, gobot)", sensorBackend)
	}

	gobotBusStr := strings.TrimSpace(os.Getenv("GOBOT_I2C_BUS"))
	if gobotBusStr == "" {
		gobotBusStr = "1"
	}
	gobotBus, err := strconv.Atoi(gobotBusStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid GOBOT_I2C_BUS %q: %w", gobotBusStr, err)
	}

	cadence, err := parsePositiveDuration("SENSOR_CADENCE", "5s")
	if err != nil {
		return Config{}, err
	}

	indicator := strings.ToLower(strings.TrimSpace(os.Getenv("INDICATOR")))
	if indicator == "" {
		indicator = "console"
	}
	switch indicator {
	case "console", "gpio", "none":
	default:
		return Config{}, fmt.Errorf("invalid INDICATOR %q (allowed: console, gpio, none)", indicator)
	}

	indicatorPin := strings.TrimSpace(os.Getenv("INDICATOR_PIN"))
	if indicatorPin == "" {
		indicatorPin = "GPIO17"
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTTopic:             mqttTopic,
		MQTTReconnectInterval: reconnectInterval,
		I2CBus:                strings.TrimSpace(os.Getenv("I2C_BUS")),
		SensorBackend:         sensorBackend,
		GobotI2CBus:           gobotBus,
		SensorCadence:         cadence,
		Indicator:             indicator,
		IndicatorPin:          indicatorPin,
	}, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
