package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Client manages the MQTT connection (low-level connection management
// only). Publishing goes through Publisher. The paho network loop is the
// only background concurrency the service owns; it keeps the connection
// alive independently of prediction cycle timing.
type Client struct {
	client mqtt.Client
	config ClientConfig
	log    *zap.Logger
}

// ClientConfig holds MQTT client configuration.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
}

// NewClient creates a new MQTT client connection.
func NewClient(config ClientConfig, log *zap.Logger) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connection established", zap.String("broker", config.BrokerURL))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Info("connected to mqtt broker", zap.String("broker", config.BrokerURL))
	return &Client{client: client, config: config, log: log}, nil
}

// NativeClient returns the underlying paho MQTT client for the Publisher.
func (c *Client) NativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.log.Info("mqtt client disconnected")
}
