package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/power2u/flexheat/core/model"
	coremon "github.com/power2u/flexheat/core/monitoring"
	coremqtt "github.com/power2u/flexheat/core/mqtt"
	"github.com/power2u/flexheat/core/timeseries"
)

var (
	t0  = time.Date(2021, 1, 12, 0, 0, 0, 0, time.UTC)
	sub = model.Subcentral{SubcentralKey: model.SubcentralKey{CustomerID: 4, SubcentralID: 12}, GridZone: 1}
	d   = timeseries.Series{Start: t0, Step: time.Hour, Values: []float64{-5, 0, 2}}
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptions(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.Equal(t, "id", opts.ClientID)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", Username: "u", AuthMethod: "certificate"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
	assert.True(t, strings.HasPrefix(opts.ClientID, "flexheat-"))
}

func TestPublishDispatch(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "dh", QoS: map[string]byte{"dispatch": 1}})
	require.NoError(t, err)
	assert.Empty(t, mc.subscribed, "no ack topic configured")

	require.NoError(t, cli.PublishDispatch(context.Background(), sub, d))
	require.Len(t, mc.published, 1)
	msg := mc.published[0]
	assert.Equal(t, "dh/4/12/dispatch", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var order coremqtt.DispatchOrder
	require.NoError(t, json.Unmarshal(msg.payload, &order))
	assert.NotEmpty(t, order.CommandID)
	assert.Equal(t, 4, order.CustomerID)
	assert.Equal(t, 3600, order.StepSeconds)
	assert.Equal(t, d, order.Series())
}

func TestPublishDispatchWaitsForAck(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", AckTopic: "acks", QoS: map[string]byte{"ack": 2}})
	require.NoError(t, err)
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, byte(2), mc.subscribed[0].qos)

	mc.onPublish = func(payload []byte) {
		var o coremqtt.DispatchOrder
		_ = json.Unmarshal(payload, &o)
		ack, _ := json.Marshal(coremqtt.Ack{CommandID: o.CommandID})
		cli.onAck(nil, mockMessage{ack})
	}
	require.NoError(t, cli.PublishDispatch(context.Background(), sub, d))
	assert.Empty(t, cli.ackChans)
}

func TestPublishDispatchAckTimeout(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", AckTopic: "acks", AckTimeout: time.Millisecond})
	require.NoError(t, err)

	err = cli.PublishDispatch(context.Background(), sub, d)
	assert.ErrorIs(t, err, coremqtt.ErrAckTimeout)
	assert.Empty(t, cli.ackChans)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1})
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	cli.Disconnect()
	assert.Empty(t, mc.published)
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	useMock(t, mc)
	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	require.NoError(t, cli.PublishDispatch(context.Background(), sub, d))
	assert.Len(t, mc.published, 2)
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorLeftToCaller(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	useMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1})
	require.NoError(t, err)
	err = cli.PublishDispatch(context.Background(), sub, d)
	require.ErrorIs(t, err, fail)
	assert.Len(t, mc.published, 3)
	// the scheduler reports failed deliveries
	assert.NoError(t, mon.err)
	assert.Nil(t, mon.tags)
}

func TestPublishCanceledDuringBackoff(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail")}}
	useMock(t, mc)
	cli, err := NewDispatchPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 5, BackoffMS: 10000})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = cli.PublishDispatch(ctx, sub, d)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mc.published, 1)
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published   []published
	publishErrs []error
	onPublish   func([]byte)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		if err != nil {
			return &dummyToken{err: err}
		}
	}
	if m.onPublish != nil {
		m.onPublish(b)
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
