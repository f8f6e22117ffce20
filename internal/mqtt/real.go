package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	offlineBufferSize = 256
	publishTimeout    = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are kept in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	pending *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout the client keeps retrying in
// the background and messages are buffered meanwhile.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := &RealPublisher{pending: newRingBuffer(offlineBufferSize)}

	will, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT", Timestamp: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.replay() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a reading with QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(r Reading) error {
	payload, err := FormatPayload(r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(pendingMsg{topic: TopicPower, payload: payload})
}

// PublishSystem sends a system lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(pendingMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg pendingMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.pending.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// replay publishes messages buffered while disconnected. Runs on paho's
// connect callback, so it must not wait on tokens.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.pending.drain()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Printf("mqtt: connected, replaying %d buffered messages", len(msgs))
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
