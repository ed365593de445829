package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/config"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

// Forwarder pushes fleet lifecycle events to external systems via an
// HTTP webhook and an MQTT broker. Either sink may be left unconfigured.
type Forwarder struct {
	cfg      config.IntegrationConfig
	registry *registry.Registry

	httpClient *http.Client
	mqttClient mqtt.Client
}

// NewForwarder creates an integration forwarder
func NewForwarder(cfg config.IntegrationConfig, reg *registry.Registry) *Forwarder {
	return &Forwarder{
		cfg:      cfg,
		registry: reg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// Enabled reports whether any sink is configured
func (f *Forwarder) Enabled() bool {
	return f.cfg.WebhookURL != "" || f.cfg.MQTTBroker != ""
}

// Start consumes registry events until the context ends
func (f *Forwarder) Start(ctx context.Context) error {
	if f.cfg.MQTTBroker != "" {
		if err := f.connectMQTT(); err != nil {
			log.Error().Err(err).Msg("Failed to connect MQTT, continuing with webhook only")
		}
	}

	events, cancel := f.registry.Subscribe(64)
	defer cancel()

	log.Info().
		Bool("webhook", f.cfg.WebhookURL != "").
		Bool("mqtt", f.mqttClient != nil).
		Msg("Integration forwarder started")

	for {
		select {
		case <-ctx.Done():
			if f.mqttClient != nil && f.mqttClient.IsConnected() {
				f.mqttClient.Disconnect(250)
			}
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			f.forward(event)
		}
	}
}

func (f *Forwarder) connectMQTT() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(f.cfg.MQTTBroker)
	opts.SetClientID("signage-coordinator")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("broker", f.cfg.MQTTBroker).Msg("MQTT client connected")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return fmt.Errorf("connect mqtt broker %s: %w", f.cfg.MQTTBroker, token.Error())
	}

	f.mqttClient = client
	return nil
}

func (f *Forwarder) forward(event registry.Event) {
	payload := map[string]interface{}{
		"type":         string(event.Type),
		"clientId":     event.Client.ID,
		"name":         event.Client.Name,
		"group":        event.Client.GroupName,
		"status":       string(event.Client.Status),
		"hardwareAddr": event.Client.HardwareAddr,
		"timestamp":    event.At,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal integration event")
		return
	}

	if f.cfg.WebhookURL != "" {
		go f.forwardToWebhook(data)
	}
	if f.mqttClient != nil {
		go f.forwardToMQTT(event, data)
	}
}

func (f *Forwarder) forwardToWebhook(data []byte) {
	req, err := http.NewRequest(http.MethodPost, f.cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Str("endpoint", f.cfg.WebhookURL).
			Msg("Failed to forward event to webhook")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("endpoint", f.cfg.WebhookURL).
			Msg("Webhook forward failed")
		return
	}

	log.Debug().
		Str("endpoint", f.cfg.WebhookURL).
		Msg("Event forwarded to webhook")
}

func (f *Forwarder) forwardToMQTT(event registry.Event, data []byte) {
	topic := f.cfg.MQTTTopic
	if topic == "" {
		topic = "signage/fleet/{client_id}/{event}"
	}
	topic = strings.ReplaceAll(topic, "{client_id}", event.Client.ID)
	topic = strings.ReplaceAll(topic, "{event}", strings.ToLower(string(event.Type)))

	token := f.mqttClient.Publish(topic, 0, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		log.Error().Str("topic", topic).Msg("MQTT publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Msg("Failed to publish to MQTT")
		return
	}

	log.Debug().
		Str("topic", topic).
		Msg("Event forwarded to MQTT")
}
