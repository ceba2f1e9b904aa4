package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/power2u/flexheat/core/model"
	coremqtt "github.com/power2u/flexheat/core/mqtt"
	"github.com/power2u/flexheat/core/timeseries"
	"github.com/power2u/flexheat/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	AckTopic    string          `json:"ack_topic"`
	AckTimeout  time.Duration   `json:"ack_timeout"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// DispatchPublisher sends allocated dispatch series to subcentral
// controllers. When an ack topic is configured every order waits for the
// controller's acknowledgment.
type DispatchPublisher struct {
	cli      pahoClient
	prefix   string
	ackTopic string
	ackWait  time.Duration
	qos      map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewDispatchPublisher connects to the MQTT broker and subscribes to the ACK
// topic if one is configured.
func NewDispatchPublisher(cfg Config) (*DispatchPublisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	p := &DispatchPublisher{
		prefix:     cfg.TopicPrefix,
		ackTopic:   cfg.AckTopic,
		ackWait:    cfg.AckTimeout,
		ackChans:   make(map[string]chan struct{}),
		logger:     logger,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	if p.ackWait <= 0 {
		p.ackWait = 10 * time.Second
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		if p.ackTopic == "" {
			return
		}
		if token := c.Subscribe(p.ackTopic, p.qosFor("ack"), p.onAck); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	id := cfg.ClientID
	if id == "" {
		id = "flexheat-" + uuid.NewString()
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(id)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *DispatchPublisher) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *DispatchPublisher) onAck(_ paho.Client, msg paho.Message) {
	var m coremqtt.Ack
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.CommandID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Infof("received ack %s", m.CommandID)
	}
	p.mu.Unlock()
}

// PublishDispatch sends d to the dispatch topic of sub, retrying with
// exponential backoff. Reporting a failure is left to the caller.
func (p *DispatchPublisher) PublishDispatch(ctx context.Context, sub model.Subcentral, d timeseries.Series) error {
	cmdID, err := p.send(ctx, sub.SubcentralKey, d)
	if err != nil {
		return err
	}
	if p.ackTopic != "" {
		return p.waitForAck(ctx, cmdID)
	}
	return nil
}

func (p *DispatchPublisher) send(ctx context.Context, key model.SubcentralKey, d timeseries.Series) (string, error) {
	cmdID := uuid.NewString()
	payload, err := json.Marshal(coremqtt.NewDispatchOrder(cmdID, key, d, time.Now()))
	if err != nil {
		return "", err
	}
	if p.ackTopic != "" {
		p.mu.Lock()
		p.ackChans[cmdID] = make(chan struct{}, 1)
		p.mu.Unlock()
	}

	topic := coremqtt.DispatchTopic(p.prefix, key)
	qos := p.qosFor("dispatch")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent dispatch %s to %s", cmdID, topic)
			return cmdID, nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
			attempt = p.maxRetries
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	p.forget(cmdID)
	return "", fmt.Errorf("publish dispatch to %s: %w", topic, publishErr)
}

func (p *DispatchPublisher) forget(cmdID string) {
	p.mu.Lock()
	delete(p.ackChans, cmdID)
	p.mu.Unlock()
}

// waitForAck blocks until an ACK for cmdID is received, the ack timeout
// elapses or ctx is done.
func (p *DispatchPublisher) waitForAck(ctx context.Context, cmdID string) error {
	p.mu.Lock()
	ch := p.ackChans[cmdID]
	p.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("unknown command %s", cmdID)
	}
	defer p.forget(cmdID)

	timer := time.NewTimer(p.ackWait)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("command %s: %w", cmdID, coremqtt.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *DispatchPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
