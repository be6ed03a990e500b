package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 100

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	AgentID    string
	BufferSize int
	Log        *zap.SugaredLogger
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client  paho.Client
	agentID string
	log     *zap.SugaredLogger
	now     func() time.Time

	// send delivers one message on a live connection.
	send func(msg bufferedMsg) error

	mu            sync.Mutex
	buf           *ringBuffer
	connected     bool
	everConnected bool
	// gen counts lost connections so a stale replay can tell it was overtaken.
	gen int
}

// NewRealPublisher creates a publisher and starts connecting in the
// background. It never blocks on an unreachable broker.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	p := &RealPublisher{
		agentID: cfg.AgentID,
		log:     cfg.Log,
		now:     time.Now,
		buf:     newRingBuffer(cfg.BufferSize, cfg.Log),
	}

	will, err := FormatSystemPayload(SystemEvent{Event: EventShutdown, Reason: ReasonMQTTDisconnect})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("scan-relay-" + cfg.AgentID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(cfg.AgentID), string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleConnectionLost(err) })

	p.client = paho.NewClient(opts)
	p.send = p.pahoSend
	p.client.Connect()
	return p, nil
}

// PublishHealth sends a monitor snapshot, retained so late subscribers
// see the current state.
func (p *RealPublisher) PublishHealth(event HealthEvent) error {
	payload, err := FormatHealthPayload(event)
	if err != nil {
		return fmt.Errorf("format health payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: HealthTopic(p.agentID), payload: payload, qos: 0, retained: true, latestOnly: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(bufferedMsg{topic: SystemTopic(p.agentID), payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}

// publish sends msg now, or buffers it while disconnected. A failed send
// is buffered too and replayed on the next connect.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.send(msg); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) pahoSend(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// handleConnect replays the buffer before accepting live publishes, so
// buffered messages reach the broker ahead of newer ones. Messages
// published during the replay are buffered and drained in the next pass.
func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	gen := p.gen
	p.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		if err := p.send(bufferedMsg{topic: SystemTopic(p.agentID), payload: payload, qos: 1}); err != nil {
			p.log.Warnw("mqtt reconnected event failed", "err", err)
		}
	}

	replayed := 0
	for {
		p.mu.Lock()
		if p.gen != gen {
			// Lost again mid-replay; the next connect resumes.
			p.mu.Unlock()
			return
		}
		pending := p.buf.drainAll()
		if len(pending) == 0 {
			p.connected = true
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for i, msg := range pending {
			if err := p.send(msg); err != nil {
				p.log.Warnw("mqtt replay failed, keeping unsent messages", "topic", msg.topic, "unsent", len(pending)-i, "err", err)
				p.requeue(pending[i:])
				return
			}
			replayed++
		}
	}
	p.log.Infow("mqtt connected", "replayed", replayed)
}

// requeue puts unsent messages back ahead of anything buffered since they
// were drained.
func (p *RealPublisher) requeue(unsent []bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	newer := p.buf.drainAll()
	for _, msg := range unsent {
		p.buf.push(msg)
	}
	for _, msg := range newer {
		p.buf.push(msg)
	}
	p.connected = true
}

func (p *RealPublisher) handleConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.gen++
	p.mu.Unlock()
	p.log.Warnw("mqtt connection lost", "err", err)
}
