// Package telemetry mirrors registry mutations into Redis/Valkey as a
// fire-and-forget external observer: it never gates or slows down the
// relay path, and it is not a system of record — registry state lives in
// process memory and the mirror is rebuilt from scratch on restart.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brassmonkey/registryd/internal/config"
	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/proto"
)

// snapshot is the JSON document published to Redis for each registry
// mutation and its mirrored key.
type snapshot struct {
	DeviceID       string    `json:"deviceId"`
	DeviceName     string    `json:"deviceName"`
	DeviceType     string    `json:"deviceType"`
	SlotID         int16     `json:"slotId"`
	CurrentClients int16     `json:"currentClients"`
	MaxClients     int16     `json:"maxClients"`
	Event          string    `json:"event"`
	At             time.Time `json:"at"`
}

// Sink publishes registry mutations to Redis. A Sink with no configured
// address is inert: every method is a no-op, so callers never need to
// branch on whether telemetry is enabled.
type Sink struct {
	client    *redis.Client
	namespace string
}

// New connects to cfg.RedisAddr. An empty RedisAddr returns a disabled,
// always-no-op Sink rather than an error — telemetry is optional.
func New(cfg config.TelemetryConfig) *Sink {
	if cfg.RedisAddr == "" {
		return &Sink{}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		obslog.Global().Warn("telemetry", "redis ping to %s failed, disabling telemetry: %v", cfg.RedisAddr, err)
		client.Close()
		return &Sink{}
	}

	obslog.Global().Info("telemetry", "publishing to redis %s namespace %q", cfg.RedisAddr, namespace)
	return &Sink{client: client, namespace: namespace}
}

func (s *Sink) enabled() bool { return s.client != nil }

func (s *Sink) key(deviceID string) string {
	return fmt.Sprintf("registry:%s:%s", s.namespace, deviceID)
}

func (s *Sink) channel() string {
	return fmt.Sprintf("registry:%s:events", s.namespace)
}

func (s *Sink) publish(event string, info *proto.RegistryInfo) {
	if !s.enabled() || info == nil {
		return
	}

	snap := snapshot{Event: event, At: time.Now()}
	if info.Device != nil {
		snap.DeviceID = info.Device.ID
		snap.DeviceName = info.Device.Name
		snap.DeviceType = info.Device.Type.String()
	}
	snap.SlotID = info.SlotID
	snap.CurrentClients = info.CurrentClients
	snap.MaxClients = info.MaxClients

	data, err := json.Marshal(snap)
	if err != nil {
		obslog.Global().Warn("telemetry", "marshal snapshot: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.Set(ctx, s.key(snap.DeviceID), data, 0).Err(); err != nil {
			obslog.Global().Warn("telemetry", "SET %s failed: %v", snap.DeviceID, err)
			return
		}
		if err := s.client.Publish(ctx, s.channel(), data).Err(); err != nil {
			obslog.Global().Warn("telemetry", "PUBLISH to %s failed: %v", s.channel(), err)
		}
	}()
}

// OnRegister implements relay.Observer.
func (s *Sink) OnRegister(info *proto.RegistryInfo) {
	s.publish("register", info)
}

// OnRelay implements relay.Observer. Telemetry has no per-relay snapshot to
// mirror (relay does not mutate the registry), so this only logs at debug
// for visibility into traffic shape.
func (s *Sink) OnRelay(senderDeviceID, targetDeviceID string) {
	if !s.enabled() {
		return
	}
	obslog.Global().Debug("telemetry", "relay %s -> %s", senderDeviceID, targetDeviceID)
}

// OnDisconnect implements relay.Observer.
func (s *Sink) OnDisconnect(deviceID string) {
	if !s.enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.Del(ctx, s.key(deviceID)).Err(); err != nil {
			obslog.Global().Warn("telemetry", "DEL %s failed: %v", deviceID, err)
		}
		data, _ := json.Marshal(snapshot{DeviceID: deviceID, Event: "disconnect", At: time.Now()})
		if err := s.client.Publish(ctx, s.channel(), data).Err(); err != nil {
			obslog.Global().Warn("telemetry", "PUBLISH disconnect for %s failed: %v", deviceID, err)
		}
	}()
}

// Close releases the underlying Redis client, if any.
func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
