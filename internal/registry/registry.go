// Package registry implements the machine registry: an in-memory map from
// guest hostname to its advertised addresses, serialized by one mutex held
// only for the duration of each map operation.
//
// It follows the shape of the suffuse clipboard hub — a single guarded map
// with simple whole-operation locking — reduced to the operations the
// protocol actually needs: Upsert, Get, Snapshot, plus DiffForwards for the
// per-hostname forward-list baseline. There is no notification fan-out
// here; QueryIp and GetMachineList are pull-only.
package registry

import (
	"sync"

	"go.klb.dev/vmc/internal/protocol"
)

// Registry is the process-wide hostname → addresses map. Entries are never
// deleted; a later Upsert for an existing hostname overwrites it.
type Registry struct {
	mu      sync.RWMutex
	byHost  map[string]protocol.MachineInfo
	lastFwd map[string]protocol.PortforwardList // hostname -> last-seen forward list
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byHost:  make(map[string]protocol.MachineInfo),
		lastFwd: make(map[string]protocol.PortforwardList),
	}
}

// Upsert records mi under mi.Hostname, overwriting any prior entry.
func (r *Registry) Upsert(mi protocol.MachineInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHost[mi.Hostname] = mi
}

// Get returns the MachineInfo registered for hostname, if any.
func (r *Registry) Get(hostname string) (protocol.MachineInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mi, ok := r.byHost[hostname]
	return mi, ok
}

// Snapshot returns every registered (hostname, MachineInfo) pair. Order is
// unspecified.
func (r *Registry) Snapshot() []protocol.MachineInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.MachineInfo, 0, len(r.byHost))
	for _, mi := range r.byHost {
		out = append(out, mi)
	}
	return out
}

// DiffForwards compares forwards against the last forward list remembered
// for hostname, returns the newly-added specs, and remembers forwards as the
// new baseline (merged, never shrunk — diffs are additive only).
func (r *Registry) DiffForwards(hostname string, forwards protocol.PortforwardList) protocol.PortforwardList {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.lastFwd[hostname]
	added := prev.Diff(forwards)
	r.lastFwd[hostname] = prev.Merge(forwards)
	return added
}
