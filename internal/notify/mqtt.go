package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

const publishTimeout = 5 * time.Second

// Options configures an MQTTNotifier.
type Options struct {
	Broker   string // host:port or a full tcp://, ssl:// or ws:// URL
	Topic    string
	ClientID string
	Site     string
}

// MQTTNotifier publishes each run's current reading as a retained message.
type MQTTNotifier struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// currentMessage is the payload: the current.json document plus the site name.
type currentMessage struct {
	Site string `json:"site"`
	monitor.Reading
}

func NewMQTTNotifier(opts Options, logger *slog.Logger) *MQTTNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &MQTTNotifier{
		opts:   opts,
		logger: logger.With("component", "mqtt"),
		stopCh: make(chan struct{}),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(brokerURL(opts.Broker))
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)

	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)

	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(_ mqtt.Client) {
		n.setConnected(true)
		n.logger.Info("mqtt connected", "broker", opts.Broker)
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		n.setConnected(false)
		n.logger.Warn("mqtt connection lost", "error", err)
	})

	n.client = mqtt.NewClient(co)
	return n
}

// Connect waits for the initial connection, honoring ctx and Disconnect.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	select {
	case <-n.stopCh:
		return ErrStopped
	default:
	}

	if n.IsConnected() {
		return nil
	}

	token := n.client.Connect()

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
			return ctx.Err()
		case <-n.stopCh:
			return ErrStopped
		default:
		}
	}
}

// NotifyCurrent publishes r with QoS 1, retained, so late subscribers see the
// latest reading immediately.
func (n *MQTTNotifier) NotifyCurrent(ctx context.Context, r monitor.Reading) error {
	if !n.IsConnected() {
		return ErrNotConnected
	}

	data, err := encodeCurrent(n.opts.Site, r)
	if err != nil {
		return err
	}

	token := n.client.Publish(n.opts.Topic, 1, true, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", n.opts.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish current reading: %w", err)
	}

	n.logger.Debug("published current reading", "topic", n.opts.Topic, "timestamp", r.Timestamp)
	return nil
}

// IsConnected returns whether the client is connected.
func (n *MQTTNotifier) IsConnected() bool {
	n.mu.RLock()
	connected := n.connected
	n.mu.RUnlock()
	return connected && n.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once.
func (n *MQTTNotifier) Disconnect() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	if n.client != nil {
		n.client.Disconnect(250)
	}
	n.setConnected(false)
	n.logger.Info("mqtt disconnected")
}

func (n *MQTTNotifier) setConnected(v bool) {
	n.mu.Lock()
	n.connected = v
	n.mu.Unlock()
}

func encodeCurrent(site string, r monitor.Reading) ([]byte, error) {
	data, err := json.Marshal(currentMessage{Site: site, Reading: r})
	if err != nil {
		return nil, fmt.Errorf("marshal current reading: %w", err)
	}
	return data, nil
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
