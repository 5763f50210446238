// Package audit records registry/relay/disconnect events to Kafka as an
// append-only event log: a bounded channel feeding a single background
// writer goroutine, one writer and one topic.
package audit

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/brassmonkey/registryd/internal/config"
	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/proto"
)

// queueSize bounds the number of pending events. Once full, the oldest
// queued event is dropped (not the newest) so the log stays closest to
// real time, and a WARNING is logged exactly once per drop.
const queueSize = 1024

const defaultTopic = "brassmonkey.registry.events"

type event struct {
	Event          string `json:"event"`
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName,omitempty"`
	DeviceType     string `json:"deviceType,omitempty"`
	SlotID         int16  `json:"slotId,omitempty"`
	CurrentClients int16  `json:"currentClients,omitempty"`
	MaxClients     int16  `json:"maxClients,omitempty"`
	TargetDeviceID string `json:"targetDeviceId,omitempty"`
	At             int64  `json:"at"`
}

// Recorder records events to Kafka. A Recorder with no configured brokers
// is inert: every method is a no-op.
type Recorder struct {
	writer *kafkago.Writer
	topic  string

	queue chan event
	done  chan struct{}
}

// New returns a Recorder publishing to cfg.KafkaBrokers/cfg.Topic. An empty
// broker list returns a disabled, always-no-op Recorder — auditing is
// optional.
func New(cfg config.AuditConfig) *Recorder {
	if len(cfg.KafkaBrokers) == 0 {
		return &Recorder{}
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}

	r := &Recorder{
		writer: w,
		topic:  topic,
		queue:  make(chan event, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()

	obslog.Global().Info("audit", "recording to kafka brokers %v topic %q", cfg.KafkaBrokers, topic)
	return r
}

func (r *Recorder) enabled() bool { return r.writer != nil }

func (r *Recorder) enqueue(e event) {
	if !r.enabled() {
		return
	}
	e.At = time.Now().UnixMilli()

	select {
	case r.queue <- e:
	default:
		// Queue full: drop the oldest pending event to make room, logging
		// the overflow once per occurrence rather than silently losing it.
		select {
		case <-r.queue:
			obslog.Global().Warn("audit", "queue full, dropped oldest pending event")
		default:
		}
		select {
		case r.queue <- e:
		default:
		}
	}
}

func (r *Recorder) run() {
	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(e)
		case <-r.done:
			return
		}
	}
}

func (r *Recorder) write(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		obslog.Global().Warn("audit", "marshal event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	msg := kafkago.Message{Key: []byte(e.DeviceID), Value: data}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		obslog.Global().Warn("audit", "write to %s failed: %v", r.topic, err)
	}
}

// OnRegister implements relay.Observer.
func (r *Recorder) OnRegister(info *proto.RegistryInfo) {
	if !r.enabled() || info == nil {
		return
	}
	e := event{Event: "register", SlotID: info.SlotID, CurrentClients: info.CurrentClients, MaxClients: info.MaxClients}
	if info.Device != nil {
		e.DeviceID = info.Device.ID
		e.DeviceName = info.Device.Name
		e.DeviceType = info.Device.Type.String()
	}
	r.enqueue(e)
}

// OnRelay implements relay.Observer.
func (r *Recorder) OnRelay(senderDeviceID, targetDeviceID string) {
	if !r.enabled() {
		return
	}
	r.enqueue(event{Event: "relay", DeviceID: senderDeviceID, TargetDeviceID: targetDeviceID})
}

// OnDisconnect implements relay.Observer.
func (r *Recorder) OnDisconnect(deviceID string) {
	if !r.enabled() {
		return
	}
	r.enqueue(event{Event: "disconnect", DeviceID: deviceID})
}

// Close stops the background writer goroutine and closes the underlying
// Kafka writer.
func (r *Recorder) Close() error {
	if !r.enabled() {
		return nil
	}
	close(r.done)
	return r.writer.Close()
}
