package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"kiln_controller/internal/logger"
	"kiln_controller/internal/models"
)

// BufferSize is how many events are kept while the broker is unreachable.
const BufferSize = 256

// RealPublisher publishes to an MQTT broker. Events published while
// disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *logger.Logger

	mu  sync.Mutex
	buf *ringBuffer

	closeOnce sync.Once
}

// NewRealPublisher connects to broker with the given client ID.
func NewRealPublisher(broker, clientID string, log *logger.Logger) (*RealPublisher, error) {
	p := &RealPublisher{log: log, buf: newRingBuffer(BufferSize)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicAvailability, "offline", 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt_connection_lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	c.Publish(TopicAvailability, 1, true, "online")

	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()

	if dropped > 0 {
		p.log.Warnw("mqtt_buffer_overflow", "dropped", dropped)
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(msgs) > 0 {
		p.log.Infow("mqtt_buffer_replayed", "count", len(msgs))
	}
}

// PublishEvent sends an event with QoS 1, buffering it while disconnected.
func (p *RealPublisher) PublishEvent(ev models.KilnEvent) error {
	payload, err := FormatEventPayload(ev)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(bufferedMsg{topic: TopicEvents, payload: payload, qos: 1})
		p.mu.Unlock()
		return nil
	}
	return wait(p.client.Publish(TopicEvents, 1, false, payload), "publish event")
}

// PublishStatus sends a retained snapshot with QoS 0. Snapshots are not
// buffered; the next one supersedes them.
func (p *RealPublisher) PublishStatus(s models.RunSnapshot) error {
	if !p.client.IsConnectionOpen() {
		return nil
	}
	payload, err := FormatStatusPayload(s)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}
	return wait(p.client.Publish(TopicStatus, 0, true, payload), "publish status")
}

func wait(token paho.Token, what string) error {
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("%s timeout", what)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// Close publishes the offline marker and disconnects. Later calls do nothing.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		if p.client.IsConnectionOpen() {
			p.client.Publish(TopicAvailability, 1, true, "offline").WaitTimeout(time.Second)
		}
		p.client.Disconnect(1000)
	})
	return nil
}
