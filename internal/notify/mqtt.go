// Package notify pushes commands to devices over MQTT.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	CommandPlaylistUpdate = "playlist_update"
	CommandService        = "service"
	CommandReboot         = "reboot"
)

// Command is the JSON payload published on devices/<device_id>/commands.
type Command struct {
	Type    string            `json:"type"`
	Service string            `json:"service,omitempty"`
	Action  string            `json:"action,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// Publisher delivers commands to a single device.
type Publisher interface {
	Publish(deviceID string, cmd Command) error
}

func Topic(deviceID string) string {
	return fmt.Sprintf("devices/%s/commands", deviceID)
}

type MQTTPublisher struct {
	mu      sync.Mutex
	client  mqtt.Client
	timeout time.Duration
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("[notify] connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warn().Err(err).Msg("[notify] MQTT connection lost")
}

// NewMQTTPublisher connects to brokerURL; the client reconnects on its own afterwards.
func NewMQTTPublisher(brokerURL, clientID string, timeout time.Duration) (*MQTTPublisher, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", brokerURL, err)
	}
	return &MQTTPublisher{client: client, timeout: timeout}, nil
}

func (p *MQTTPublisher) Publish(deviceID string, cmd Command) error {
	if cmd.SentAt.IsZero() {
		cmd.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("MQTT publisher closed")
	}

	topic := Topic(deviceID)
	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	log.Debug().Str("device_id", deviceID).Str("type", cmd.Type).Msg("[notify] command published")
	return nil
}

func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
		log.Info().Msg("[notify] MQTT client disconnected")
	}
}

// Noop drops every command; used when no broker is configured.
type Noop struct{}

func (Noop) Publish(deviceID string, cmd Command) error {
	log.Debug().Str("device_id", deviceID).Str("type", cmd.Type).Msg("[notify] no broker configured, command dropped")
	return nil
}
