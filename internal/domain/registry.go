// Package domain provides core domain implementations.
package domain

import (
	"sync"
	"time"
)

// InverterStatus holds the most recent state observed for one configured
// inverter.
type InverterStatus struct {
	Name        string     `json:"name"`
	Host        string     `json:"host"`
	SourceType  SourceType `json:"source_type"`
	LastContact time.Time  `json:"last_contact,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Device      *Device    `json:"device,omitempty"`
	Inverter    *Inverter  `json:"inverter,omitempty"`
}

// StatusRegistry keeps track of the latest reading per configured inverter.
type StatusRegistry struct {
	inverters map[string]*InverterStatus
	mutex     sync.RWMutex
}

// NewStatusRegistry creates a new status registry.
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{
		inverters: make(map[string]*InverterStatus),
	}
}

// Register adds an inverter to the registry or updates its connection
// parameters.
func (r *StatusRegistry) Register(name, host string, sourceType SourceType) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	status, exists := r.inverters[name]
	if !exists {
		r.inverters[name] = &InverterStatus{
			Name:       name,
			Host:       host,
			SourceType: sourceType,
		}
		return
	}

	status.Host = host
	status.SourceType = sourceType
}

// UpdateReading stores the latest successful pair of records and refreshes
// the contact timestamp.
func (r *StatusRegistry) UpdateReading(name string, device Device, inverter Inverter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	status, exists := r.inverters[name]
	if !exists {
		return
	}

	status.LastContact = time.Now()
	status.LastError = ""
	status.Device = &device
	status.Inverter = &inverter
}

// UpdateError records a failed poll attempt. The last successful records are
// kept so the API can keep serving them.
func (r *StatusRegistry) UpdateError(name string, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	status, exists := r.inverters[name]
	if !exists || err == nil {
		return
	}

	status.LastError = err.Error()
}

// Get retrieves the status for a single inverter. The returned value is a
// copy; callers cannot mutate registry state through it.
func (r *StatusRegistry) Get(name string) (InverterStatus, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	status, exists := r.inverters[name]
	if !exists {
		return InverterStatus{}, false
	}
	return *status, true
}

// All returns a snapshot of every registered inverter.
func (r *StatusRegistry) All() []InverterStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]InverterStatus, 0, len(r.inverters))
	for _, status := range r.inverters {
		out = append(out, *status)
	}
	return out
}
