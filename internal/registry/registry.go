// Package registry holds the server's in-memory device table: the set of
// currently-connected participants, their slot/capacity bookkeeping, and
// the role-filtered list views handed back to clients. Nothing here
// survives a restart.
package registry

import (
	"sync"

	"github.com/brassmonkey/registryd/internal/proto"
)

// Registry is the server-global device table, keyed by device ID. It is
// the single source of truth for a device's slot and capacity counters —
// registry.update requests mutate entries here directly rather than a
// separate per-session copy, so every list build reflects the latest
// values with no separate "live session" lookup required. See DESIGN.md
// for this simplification relative to the original two-structure model.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*proto.RegistryInfo
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*proto.RegistryInfo)}
}

// Register stores a clone of info under info.Device.ID, first removing any
// prior record for the same device ID. Returns the previous entry, if any.
func (r *Registry) Register(info *proto.RegistryInfo) (previous *proto.RegistryInfo, hadPrevious bool) {
	if info == nil || info.Device == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, hadPrevious = r.byID[info.Device.ID]
	r.byID[info.Device.ID] = info.Clone()
	return previous, hadPrevious
}

// Unregister removes deviceID from the table, returning the removed entry.
func (r *Registry) Unregister(deviceID string) (*proto.RegistryInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.byID[deviceID]
	if ok {
		delete(r.byID, deviceID)
	}
	return info, ok
}

// Get returns a clone of the entry for deviceID, if present.
func (r *Registry) Get(deviceID string) (*proto.RegistryInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byID[deviceID]
	if !ok {
		return nil, false
	}
	return info.Clone(), true
}

// CapacityUpdate describes the fields registry.update may merge into an
// existing entry. A nil pointer means "not supplied" — only non-nil
// fields overwrite, and SlotID additionally only when it is non-zero.
type CapacityUpdate struct {
	MaxClients     *int16
	CurrentClients *int16
	SlotID         *int16
}

// Update merges upd into the stored entry for deviceID. Returns false if
// deviceID has no entry.
func (r *Registry) Update(deviceID string, upd CapacityUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.byID[deviceID]
	if !ok {
		return false
	}
	if upd.MaxClients != nil {
		info.MaxClients = *upd.MaxClients
	}
	if upd.CurrentClients != nil {
		info.CurrentClients = *upd.CurrentClients
	}
	if upd.SlotID != nil && *upd.SlotID != 0 {
		info.SlotID = *upd.SlotID
	}
	return true
}

// ListFiltered returns a role-filtered, deduplicated snapshot of connected
// devices. Game viewers (FLASH/UNITY) see every device; controller
// viewers see only games. Each returned RegistryInfo is an independent
// deep copy safe for the caller to mutate or serialize.
func (r *Registry) ListFiltered(viewerIsGame bool) []*proto.RegistryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*proto.RegistryInfo, 0, len(r.byID))
	for _, info := range r.byID {
		if info.Device == nil {
			continue
		}
		if !viewerIsGame && !info.Device.Type.IsGame() {
			continue
		}
		out = append(out, info.Clone())
	}
	return out
}

// Len reports the number of registered devices (for tests/telemetry).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
