package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTT defaults for PLC tag gateways.
const (
	DefaultMQTTPort       = 1883
	DefaultTopicPrefix    = "plc/tags"
	DefaultConnectTimeout = 2 * time.Second
	DefaultClientID       = "proxtrend"
)

// MQTTOptions configures how tag gateways are reached.
type MQTTOptions struct {
	Port           int
	TopicPrefix    string
	// StaleAfter rejects values older than this. Only usable with gateways
	// that republish at least that often; change-only gateways hold a
	// steady level silently. 0, the default, trusts the cached value for as
	// long as the connection is open.
	StaleAfter     time.Duration
	ConnectTimeout time.Duration
	ClientID       string
}

func (o MQTTOptions) withDefaults() MQTTOptions {
	if o.Port == 0 {
		o.Port = DefaultMQTTPort
	}
	if o.TopicPrefix == "" {
		o.TopicPrefix = DefaultTopicPrefix
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ClientID == "" {
		o.ClientID = DefaultClientID
	}
	return o
}

// TagTopic returns the topic a gateway publishes tag on.
func TagTopic(prefix, tag string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + tag
}

type tagValue struct {
	on   bool
	seen time.Time
}

// MQTTSource serves tag values published by a PLC tag gateway. Values are
// cached as they arrive so Read never waits on the broker.
type MQTTSource struct {
	client     paho.Client
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger

	topics map[string]string // topic -> tag

	mu     sync.RWMutex
	values map[string]tagValue
}

// NewMQTTSource connects to the gateway broker on address and subscribes to
// tags. It fails if the broker cannot be reached within the connect timeout.
func NewMQTTSource(ctx context.Context, address string, tags []string, opts MQTTOptions, now func() time.Time, logger *slog.Logger) (*MQTTSource, error) {
	opts = opts.withDefaults()
	s := newMQTTSource(tags, opts, now, logger)

	broker := fmt.Sprintf("tcp://%s:%d", address, opts.Port)
	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("%s-%s-%d", opts.ClientID, tags[0], now().UnixNano())).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOnConnectHandler(s.subscribe).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn("gateway connection lost", "error", err)
		})

	s.client = paho.NewClient(clientOpts)
	token := s.client.Connect()

	timer := time.NewTimer(opts.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		s.client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	case <-ctx.Done():
		s.client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: %w", broker, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	s.logger.Info("connected to tag gateway", "broker", broker)
	return s, nil
}

func newMQTTSource(tags []string, opts MQTTOptions, now func() time.Time, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.Default()
	}
	topics := make(map[string]string, len(tags))
	for _, tag := range tags {
		topics[TagTopic(opts.TopicPrefix, tag)] = tag
	}
	return &MQTTSource{
		staleAfter: opts.StaleAfter,
		now:        now,
		logger:     logger,
		topics:     topics,
		values:     make(map[string]tagValue),
	}
}

// subscribe runs on every (re)connect so subscriptions survive reconnects.
func (s *MQTTSource) subscribe(c paho.Client) {
	filters := make(map[string]byte, len(s.topics))
	for topic := range s.topics {
		filters[topic] = 0
	}
	c.SubscribeMultiple(filters, func(_ paho.Client, m paho.Message) {
		s.handle(m.Topic(), m.Payload())
	})
}

func (s *MQTTSource) handle(topic string, payload []byte) {
	tag, ok := s.topics[topic]
	if !ok {
		return
	}
	on, err := ParsePayload(payload)
	if err != nil {
		s.logger.Debug("ignoring tag payload", "tag", tag, "error", err)
		return
	}
	s.mu.Lock()
	s.values[tag] = tagValue{on: on, seen: s.now()}
	s.mu.Unlock()
}

// Read returns the cached values of both tags.
func (s *MQTTSource) Read(tag1, tag2 string) (bool, bool, error) {
	if s.client != nil && !s.client.IsConnectionOpen() {
		return false, false, fmt.Errorf("%w: gateway disconnected", ErrUnavailable)
	}

	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	v1, err := s.lookup(tag1, now)
	if err != nil {
		return false, false, err
	}
	v2, err := s.lookup(tag2, now)
	if err != nil {
		return false, false, err
	}
	return v1, v2, nil
}

func (s *MQTTSource) lookup(tag string, now time.Time) (bool, error) {
	v, ok := s.values[tag]
	if !ok {
		return false, fmt.Errorf("%w: %s not received", ErrUnavailable, tag)
	}
	if s.staleAfter > 0 && now.Sub(v.seen) > s.staleAfter {
		return false, fmt.Errorf("%w: %s stale", ErrUnavailable, tag)
	}
	return v.on, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}

// gatewayValue is the JSON form some gateways publish.
type gatewayValue struct {
	Value json.RawMessage `json:"value"`
}

// ParsePayload decodes a gateway payload into a boolean. Accepted forms are
// 1/0, true/false, on/off (any case), numbers (non-zero is true) and
// {"value": <any of those>}.
func ParsePayload(payload []byte) (bool, error) {
	p := bytes.TrimSpace(payload)
	if len(p) > 0 && p[0] == '{' {
		var gv gatewayValue
		if err := json.Unmarshal(p, &gv); err != nil {
			return false, fmt.Errorf("decode payload: %w", err)
		}
		if gv.Value == nil {
			return false, fmt.Errorf("payload has no value field")
		}
		return parseScalar(strings.Trim(string(bytes.TrimSpace(gv.Value)), `"`))
	}
	return parseScalar(string(p))
}

func parseScalar(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false, fmt.Errorf("unrecognised payload %q", s)
	}
	return f != 0, nil
}
