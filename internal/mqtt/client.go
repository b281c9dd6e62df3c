package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"vejrstation-node/internal/clock"
	"vejrstation-node/internal/config"
	"vejrstation-node/internal/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	errStopped      = errors.New("client stopped")
)

const (
	publishQoS     byte = 0
	publishTimeout      = 5 * time.Second
)

// Client keeps a broker session for the node and publishes samples at most once.
type Client struct {
	client  mqtt.Client
	cfg     config.Config
	logger  *slog.Logger
	sleeper clock.Sleeper

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := Wrap(cfg, nil, clock.Real{}, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	// EnsureConnected owns reconnection so every attempt is logged and paced.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(15 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Wrap builds a Client around an existing paho client.
func Wrap(cfg config.Config, client mqtt.Client, sleeper clock.Sleeper, logger *slog.Logger) *Client {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		sleeper: sleeper,
		stopCh:  make(chan struct{}),
	}
}

// EnsureConnected blocks until the broker accepts a session, retrying every
// MQTTReconnectInterval. It returns early only when ctx ends or Disconnect is called.
func (c *Client) EnsureConnected(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopCh:
			return errStopped
		default:
		}

		if c.IsConnected() {
			return nil
		}

		c.logger.Info("mqtt: attempting connection",
			"broker", c.cfg.MQTTBroker,
			"port", c.cfg.MQTTPort,
			"client_id", c.cfg.MQTTClientID,
			"attempt", attempt,
		)
		err := c.connectOnce(ctx)
		if err == nil {
			c.setConnected(true)
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, errStopped) {
			return err
		}

		c.logger.Warn("mqtt: connect failed",
			"error", err,
			"attempt", attempt,
			"retry_in", c.cfg.MQTTReconnectInterval,
		)
		if err := c.sleeper.Sleep(ctx, c.cfg.MQTTReconnectInterval); err != nil {
			return err
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return errStopped
		default:
		}
	}
}

// Publish sends one sample on the configured topic. There is no retry.
func (c *Client) Publish(s types.Sample) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	topic := c.cfg.MQTTTopic
	payload := Payload(s)

	token := c.client.Publish(topic, publishQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("failed to publish sample", "topic", topic, "error", err)
		return fmt.Errorf("publish sample: %w", err)
	}

	c.logger.Info("published",
		"topic", topic,
		"payload", string(payload),
		"cycle", s.WallCycle,
	)
	return nil
}

// Payload renders the fixed wire shape with two fractional digits per value:
// {"temperature":21.37,"humidity":44.80,"pressure":1012.50}
func Payload(s types.Sample) []byte {
	b := make([]byte, 0, 64)
	b = append(b, `{"temperature":`...)
	b = strconv.AppendFloat(b, s.Temperature, 'f', 2, 64)
	b = append(b, `,"humidity":`...)
	b = strconv.AppendFloat(b, s.Humidity, 'f', 2, 64)
	b = append(b, `,"pressure":`...)
	b = strconv.AppendFloat(b, s.Pressure, 'f', 2, 64)
	b = append(b, '}')
	return b
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
