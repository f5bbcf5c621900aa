package mqtt

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"homescript-controller/internal/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config holds MQTT connection configuration.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Client wraps the paho MQTT client used by the device registry to publish
// commands and subscribe to state topics.
type Client struct {
	client paho.Client
}

// NewClient connects to the configured broker.
func NewClient(cfg Config) (*Client, error) {
	paho.ERROR = log.New(io.Discard, "", 0)
	paho.CRITICAL = log.New(io.Discard, "", 0)
	paho.WARN = log.New(io.Discard, "", 0)

	opts := paho.NewClientOptions()

	brokerURL := cfg.Broker
	if !strings.HasPrefix(brokerURL, "tcp://") && !strings.HasPrefix(brokerURL, "ssl://") {
		brokerURL = "tcp://" + brokerURL
	}

	logger.Debug("Connecting to MQTT broker at %s...", brokerURL)
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWriteTimeout(10 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.OnConnect = func(c paho.Client) {
		logger.Debug("MQTT connected to %s", brokerURL)
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connection timeout after 15 seconds")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", token.Error())
	}

	return &Client{client: client}, nil
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	token := c.client.Subscribe(topic, 0, handler)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// Publish publishes a payload to a topic, waiting up to 5s for the broker
// to acknowledge.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout after 5 seconds")
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish: %w", token.Error())
	}
	return nil
}

// Disconnect closes the MQTT connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	logger.Debug("MQTT disconnected")
}
