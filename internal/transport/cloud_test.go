package transport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uticket/printd/internal/config"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (f *fakeToken) Wait() bool                       { return true }
func (f *fakeToken) WaitTimeout(_ time.Duration) bool { return !f.timeout }
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (f *fakeToken) Error() error { return f.err }

type fakeMQTTClient struct {
	connectToken *fakeToken
	publishToken *fakeToken

	publishedTopic   string
	publishedQoS     byte
	publishedPayload []byte
	disconnected     bool
}

func (f *fakeMQTTClient) Connect() mqtt.Token { return f.connectToken }

func (f *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.publishedTopic = topic
	f.publishedQoS = qos
	f.publishedPayload = payload.([]byte)
	return f.publishToken
}

func (f *fakeMQTTClient) Disconnect(quiesce uint) { f.disconnected = true }

func newTestCloud(client *fakeMQTTClient) (*Cloud, *config.Settings) {
	settings := config.DefaultSettings()
	settings.MQTTHost = "broker.example.com"
	settings.MQTTTopic = "Prn20B1B50C2199"

	cloud := NewCloud(settings)
	cloud.dial = func(opts *mqtt.ClientOptions) mqttClient { return client }
	return cloud, settings
}

func healthyClient() *fakeMQTTClient {
	return &fakeMQTTClient{connectToken: &fakeToken{}, publishToken: &fakeToken{}}
}

func TestCloud_NotConfiguredWithoutHost(t *testing.T) {
	cloud := NewCloud(config.DefaultSettings())
	assert.False(t, cloud.Configured())
}

func TestCloud_SendPublishesEnvelope(t *testing.T) {
	client := healthyClient()
	cloud, _ := newTestCloud(client)

	img := image.NewGray(image.Rect(0, 0, 100, 40))
	require.NoError(t, cloud.Send(img, true))

	assert.Equal(t, "Prn20B1B50C2199", client.publishedTopic)
	assert.Equal(t, byte(2), client.publishedQoS, "delivery must be exactly-once")
	assert.True(t, client.disconnected)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(client.publishedPayload, &env))
	assert.Equal(t, "png", env["data_type"])
	assert.Equal(t, float64(1), env["cut_paper"])
	assert.Equal(t, "printd", env["source"])
	assert.Contains(t, env["ticket_id"], "desk-")

	raw, err := base64.StdEncoding.DecodeString(env["data_base64"].(string))
	require.NoError(t, err)
	// PNG signature.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
}

func TestCloud_SendWithoutCut(t *testing.T) {
	client := healthyClient()
	cloud, _ := newTestCloud(client)

	require.NoError(t, cloud.Send(image.NewGray(image.Rect(0, 0, 8, 8)), false))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(client.publishedPayload, &env))
	assert.Equal(t, float64(0), env["cut_paper"])
}

func TestCloud_SendCutEnvelope(t *testing.T) {
	client := healthyClient()
	cloud, _ := newTestCloud(client)

	require.NoError(t, cloud.SendCut())

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(client.publishedPayload, &env))
	assert.Equal(t, "cut-only", env["ticket_id"])
	assert.Equal(t, "cmd", env["data_type"])
	assert.Equal(t, float64(1), env["cut_paper"])
	_, hasData := env["data_base64"]
	assert.False(t, hasData, "cut-only envelopes carry no image data")
}

func TestCloud_ConnectTimeout(t *testing.T) {
	client := &fakeMQTTClient{
		connectToken: &fakeToken{timeout: true},
		publishToken: &fakeToken{},
	}
	cloud, _ := newTestCloud(client)

	err := cloud.SendCut()
	assert.ErrorIs(t, err, ErrBrokerTimeout)
}

func TestCloud_ConnectRefused(t *testing.T) {
	client := &fakeMQTTClient{
		connectToken: &fakeToken{err: errors.New("not authorized")},
		publishToken: &fakeToken{},
	}
	cloud, _ := newTestCloud(client)

	err := cloud.SendCut()
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestCloud_PublishFailureDisconnects(t *testing.T) {
	client := &fakeMQTTClient{
		connectToken: &fakeToken{},
		publishToken: &fakeToken{err: errors.New("broker rejected")},
	}
	cloud, _ := newTestCloud(client)

	err := cloud.SendCut()
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.True(t, client.disconnected)
}

func TestCloud_BrokerURLScheme(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MQTTHost = "broker.example.com"
	settings.MQTTPort = 8883
	cloud := NewCloud(settings)

	assert.Equal(t, "ssl://broker.example.com:8883", cloud.brokerURL())

	settings.MQTTUseTLS = false
	settings.MQTTPort = 1883
	assert.Equal(t, "tcp://broker.example.com:1883", cloud.brokerURL())
}
