package transport

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/uticket/printd/internal/config"
	"github.com/uticket/printd/internal/render"
)

const (
	sourceTag = "printd"

	qosExactlyOnce byte = 2

	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	keepAlive      = 30 * time.Second

	disconnectQuiesceMS = 250
)

// envelope is the JSON payload published to the relay topic.
type envelope struct {
	TicketID   string `json:"ticket_id"`
	DataType   string `json:"data_type"`
	DataBase64 string `json:"data_base64,omitempty"`
	CutPaper   int    `json:"cut_paper"`
	Source     string `json:"source"`
}

// mqttClient is the slice of the paho client the transport needs; tests
// substitute a fake.
type mqttClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Cloud publishes receipts as base64 PNG envelopes over MQTT. A client is
// connected, used for one publish and disconnected; nothing is reused
// across deliveries.
type Cloud struct {
	settings *config.Settings
	dial     func(opts *mqtt.ClientOptions) mqttClient
}

func NewCloud(settings *config.Settings) *Cloud {
	return &Cloud{
		settings: settings,
		dial: func(opts *mqtt.ClientOptions) mqttClient {
			return mqtt.NewClient(opts)
		},
	}
}

func (c *Cloud) Name() string { return "cloud" }

func (c *Cloud) Outcome() Outcome { return OutcomeCloud }

func (c *Cloud) Configured() bool { return c.settings.MQTTHost != "" }

func (c *Cloud) Send(img image.Image, cut bool) error {
	mono := render.Normalize(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, mono); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}

	return c.publish(envelope{
		TicketID:   fmt.Sprintf("desk-%d", time.Now().Unix()),
		DataType:   "png",
		DataBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		CutPaper:   boolToInt(cut),
		Source:     sourceTag,
	})
}

func (c *Cloud) SendCut() error {
	return c.publish(envelope{
		TicketID: "cut-only",
		DataType: "cmd",
		CutPaper: 1,
		Source:   sourceTag,
	})
}

func (c *Cloud) publish(env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL()).
		SetClientID("printd-" + uuid.NewString()[:8]).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if c.settings.MQTTUser != "" {
		opts.SetUsername(c.settings.MQTTUser)
		opts.SetPassword(c.settings.MQTTPass)
	}
	if c.settings.MQTTUseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client := c.dial(opts)

	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: connect", ErrBrokerTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer client.Disconnect(disconnectQuiesceMS)

	pub := client.Publish(c.settings.MQTTTopic, qosExactlyOnce, false, payload)
	if !pub.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: publish", ErrBrokerTimeout)
	}
	if err := pub.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return nil
}

func (c *Cloud) brokerURL() string {
	scheme := "tcp"
	if c.settings.MQTTUseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.settings.MQTTHost, c.settings.MQTTPort)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
