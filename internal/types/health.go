// Package types - service health status definitions
package types

import "time"

// HealthStatus represents the operational health of the relay or one of
// its dependencies.
type HealthStatus string

const (
	// HealthOnline - every dependency answered its probe
	HealthOnline HealthStatus = "online"

	// HealthDegraded - the store answers but the ledger does not
	// - reads keep working, relayed transactions will come back Unknown
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline - the store is unreachable
	HealthOffline HealthStatus = "offline"
)

// ComponentHealth is the probe result for one dependency.
type ComponentHealth struct {
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// HealthReport is returned by the health endpoint.
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// Overall derives the report status from its components: the store decides
// between online and offline, the ledger can only degrade.
func (r HealthReport) Overall() HealthStatus {
	if c, ok := r.Components["store"]; ok && c.Status != HealthOnline {
		return HealthOffline
	}
	for _, c := range r.Components {
		if c.Status != HealthOnline {
			return HealthDegraded
		}
	}
	return HealthOnline
}
